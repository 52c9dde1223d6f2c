package risk

import (
	"context"
	"fmt"
	"math"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// LevelConfig is one configured take-profit rung, relative to entry price.
type LevelConfig struct {
	TargetMultiple float64 // Entry-price multiple at which the level fires
	SellPercent    float64 // Fraction of remaining quantity to sell (0..1]
}

// Config holds configuration for risk management.
type Config struct {
	StopLossPercent float64       // Initial stop distance below entry (e.g. 0.30)
	Levels          []LevelConfig // Ascending target order
	RatchetL2Mult   float64       // Stop after level 2 = entry * this
	RatchetL3Mult   float64       // Stop after level 3+ = entry * this
}

// SellInstruction is the engine's decision to reduce or exit a position.
type SellInstruction struct {
	Percent float64           // Fraction of remaining quantity to sell
	Reason  domain.SellReason //
	Level   int               // 1-based take-profit level, 0 for stop-loss
}

// Engine evaluates stop-loss and take-profit rules against price updates
// and manages the trailing-stop ratchet. Decisions are pure; issuing the
// sell (and holding the position lock) is the orchestrator's job.
type Engine struct {
	cfg    Config
	logger ports.Logger
}

// NewEngine creates a new risk engine instance.
func NewEngine(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk engine")
	}
	if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1 {
		return nil, fmt.Errorf("StopLossPercent must be between 0 and 1")
	}
	prev := 1.0
	for i, lvl := range cfg.Levels {
		if lvl.TargetMultiple <= prev {
			return nil, fmt.Errorf("take-profit multiples must be ascending and greater than 1 (level %d)", i+1)
		}
		if lvl.SellPercent <= 0 || lvl.SellPercent > 1 {
			return nil, fmt.Errorf("take-profit sell percent must be in (0, 1] (level %d)", i+1)
		}
		prev = lvl.TargetMultiple
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// InitialRisk computes the stop-loss price and take-profit ladder for a new
// position entered at entryPrice.
func (e *Engine) InitialRisk(entryPrice float64) (float64, []domain.TakeProfitLevel) {
	stop := entryPrice * (1 - e.cfg.StopLossPercent)
	levels := make([]domain.TakeProfitLevel, 0, len(e.cfg.Levels))
	for _, lvl := range e.cfg.Levels {
		levels = append(levels, domain.TakeProfitLevel{
			TargetPrice: entryPrice * lvl.TargetMultiple,
			SellPercent: lvl.SellPercent,
		})
	}
	return stop, levels
}

// Evaluate checks the stop-loss and take-profit rules for an ACTIVE
// position against the given price. A matched take-profit level is marked
// triggered immediately, before the sell resolves, so it fires at most once
// even under concurrent price updates; the caller must roll the flag back
// via RollbackTrigger if the sell request fails synchronously.
// Returns nil when no rule fires.
func (e *Engine) Evaluate(ctx context.Context, pos *domain.Position, price float64) *SellInstruction {
	if !pos.IsActive() || price <= 0 {
		return nil
	}

	if price <= pos.StopLossPrice {
		e.logger.Info(ctx, "Stop loss triggered", map[string]interface{}{
			"positionID": pos.ID, "price": price, "stopLoss": pos.StopLossPrice,
		})
		return &SellInstruction{Percent: 1.0, Reason: domain.ReasonStopLoss}
	}

	for i := range pos.TakeProfitLevels {
		lvl := &pos.TakeProfitLevels[i]
		if lvl.Triggered || price < lvl.TargetPrice {
			continue
		}
		lvl.Triggered = true
		e.logger.Info(ctx, "Take profit triggered", map[string]interface{}{
			"positionID": pos.ID, "level": i + 1, "price": price, "target": lvl.TargetPrice,
		})
		return &SellInstruction{
			Percent: lvl.SellPercent,
			Reason:  domain.TakeProfitReason(i + 1),
			Level:   i + 1,
		}
	}
	return nil
}

// RollbackTrigger clears a take-profit level's triggered flag after a
// synchronous sell failure so it can fire again on a later price update.
func (e *Engine) RollbackTrigger(pos *domain.Position, level int) {
	if level >= 1 && level <= len(pos.TakeProfitLevels) {
		pos.TakeProfitLevels[level-1].Triggered = false
	}
}

// RatchetStop raises the stop-loss after a take-profit level settled:
// level 1 moves the stop to breakeven entry, level 2 to a fixed positive
// multiple of entry, level 3 and beyond to a higher multiple. The stop
// never moves downward relative to its previous value.
func (e *Engine) RatchetStop(ctx context.Context, pos *domain.Position, level int) {
	if level < 1 {
		return
	}
	var target float64
	switch level {
	case 1:
		target = pos.EntryPrice
	case 2:
		target = pos.EntryPrice * e.cfg.RatchetL2Mult
	default:
		target = pos.EntryPrice * e.cfg.RatchetL3Mult
	}

	newStop := math.Max(pos.StopLossPrice, target)
	if newStop > pos.StopLossPrice {
		e.logger.Info(ctx, "Stop loss ratcheted", map[string]interface{}{
			"positionID": pos.ID, "level": level, "oldStop": pos.StopLossPrice, "newStop": newStop,
		})
		pos.StopLossPrice = newStop
	}
}
