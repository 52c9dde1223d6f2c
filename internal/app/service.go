package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"solSniperBot/config"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/pool"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/price"
	"solSniperBot/internal/risk"
	"solSniperBot/internal/swap"
)

const lamportsPerSOL = 1e9

// managedPosition pairs a position with its own mutex. All status
// transitions and field updates for one position are serialized on this
// lock; different positions never block each other.
type managedPosition struct {
	mu  sync.Mutex
	pos *domain.Position

	// Last sell submission, kept for settlement fallback.
	submission *swap.Submission
	// Cancels the scheduled confirmation check or sell retry.
	cancelCheck ports.CancelFunc
	// Set while an unconfirmed sell waits for its re-attempt; blocks the
	// risk engine from issuing a competing sell in the gap.
	retryPending bool
}

// TradingService is the position state machine: it owns the live-position
// collection, drives the price oracle and risk engine, executes sells
// through the swap executor, and tracks pending sells through confirmation,
// retry and escalation to manual review.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	resolver  *pool.Resolver
	oracle    *price.Oracle
	executor  *swap.Executor
	riskEng   *risk.Engine
	store     ports.PositionStore
	history   ports.TradeHistory
	events    ports.EventPublisher
	scheduler ports.Scheduler
	wallet    solana.PublicKey

	mu        sync.RWMutex // Guards the positions map itself
	positions map[string]*managedPosition
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	resolver *pool.Resolver,
	oracle *price.Oracle,
	executor *swap.Executor,
	riskEng *risk.Engine,
	store ports.PositionStore,
	history ports.TradeHistory,
	events ports.EventPublisher,
	scheduler ports.Scheduler,
	wallet solana.PublicKey,
) (*TradingService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || resolver == nil || oracle == nil || executor == nil ||
		riskEng == nil || store == nil || history == nil || events == nil || scheduler == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}

	// Validate config values needed by the service
	if cfg.MaxSellRetries <= 0 {
		return nil, fmt.Errorf("configuration MaxSellRetries must be positive")
	}
	if cfg.MinRemainingQty < 0 || cfg.MinRemainingPct < 0 || cfg.MinRemainingPct >= 1 {
		return nil, fmt.Errorf("configuration dust thresholds are invalid")
	}
	if cfg.ConfirmCheckDelay <= 0 || cfg.SellRetryDelay <= 0 {
		return nil, fmt.Errorf("configuration confirmation delays must be positive")
	}

	return &TradingService{
		cfg:       cfg,
		logger:    logger,
		resolver:  resolver,
		oracle:    oracle,
		executor:  executor,
		riskEng:   riskEng,
		store:     store,
		history:   history,
		events:    events,
		scheduler: scheduler,
		wallet:    wallet,
		positions: make(map[string]*managedPosition),
	}, nil
}

// Start restores persisted positions and runs the polling loops until the
// context is cancelled or a shutdown signal arrives.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.Restore(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runLoop(ctx, s.cfg.FastPollInterval, s.fastPollTick)
	}()
	go func() {
		defer wg.Done()
		s.runLoop(ctx, s.cfg.FallbackPollInterval, s.fallbackPollTick)
	}()

	<-ctx.Done()
	wg.Wait()

	if summary, err := s.history.Summary(context.Background()); err == nil {
		s.logger.Info(context.Background(), "Trade history summary", map[string]interface{}{
			"totalTrades": summary.TotalTrades, "totalPnL": summary.TotalPnL,
			"winRate": summary.WinRate, "manualReviews": summary.ManualReviews,
		})
	}
	s.logger.Info(context.Background(), "Trading Service stopped.")
	return nil
}

// Restore loads the live-position set from the store. Positions that were
// mid-sell when the process died get a confirmation check scheduled
// immediately.
func (s *TradingService) Restore(ctx context.Context) error {
	persisted, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore positions: %w", err)
	}

	s.mu.Lock()
	for _, pos := range persisted {
		s.positions[pos.ID] = &managedPosition{pos: pos}
	}
	s.mu.Unlock()

	for _, pos := range persisted {
		if pos.Status == domain.StatusPendingSell && pos.PendingTxSignature != "" {
			id := pos.ID
			s.logger.Info(ctx, "Restored position with pending sell, scheduling confirmation check", map[string]interface{}{
				"positionID": id, "signature": pos.PendingTxSignature,
			})
			s.scheduleConfirmCheck(id, 0)
		}
	}
	s.logger.Info(ctx, "Positions restored", map[string]interface{}{"count": len(persisted)})
	return nil
}

func (s *TradingService) runLoop(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// fastPollTick prices every live position concurrently through the fast
// reserve-read path. Positions are independent; one slow read never blocks
// the others.
func (s *TradingService) fastPollTick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, mp := range s.snapshot() {
		wg.Add(1)
		go func(mp *managedPosition) {
			defer wg.Done()
			s.updatePrice(ctx, mp, false)
		}(mp)
	}
	wg.Wait()
}

// fallbackPollTick prices only positions whose fast read has gone stale,
// through the slower re-resolving path.
func (s *TradingService) fallbackPollTick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, mp := range s.snapshot() {
		mp.mu.Lock()
		stale := time.Since(mp.pos.LastPriceUpdate) >= s.cfg.PriceStaleAfter
		mp.mu.Unlock()
		if !stale {
			continue
		}
		wg.Add(1)
		go func(mp *managedPosition) {
			defer wg.Done()
			s.updatePrice(ctx, mp, true)
		}(mp)
	}
	wg.Wait()
}

// updatePrice performs one oracle read for a position and, on success,
// records the observation and evaluates the risk rules under the position's
// lock. A failed or timed-out read skips the cycle, never blocks the loop.
func (s *TradingService) updatePrice(ctx context.Context, mp *managedPosition, fallback bool) {
	mp.mu.Lock()
	id := mp.pos.ID
	mintStr := mp.pos.TokenAddress
	mp.mu.Unlock()

	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		s.logger.Error(ctx, err, "Invalid token address on position", map[string]interface{}{"positionID": id})
		return
	}

	var observed domain.Price
	if fallback {
		observed, err = s.oracle.FallbackPrice(ctx, mint)
	} else {
		p, perr := s.resolver.GetPool(ctx, mint)
		if perr != nil {
			s.logger.Debug(ctx, "Pool unavailable for price read", map[string]interface{}{"positionID": id, "error": perr.Error()})
			return
		}
		observed, err = s.oracle.FastPrice(ctx, p)
	}
	if err != nil {
		if errors.Is(err, ports.ErrPriceUnavailable) {
			s.logger.Debug(ctx, "Price unavailable this cycle", map[string]interface{}{"positionID": id})
		} else {
			s.logger.Warn(ctx, "Price read failed", map[string]interface{}{"positionID": id, "error": err.Error()})
		}
		return
	}

	s.applyPrice(ctx, mp, observed)
}

// applyPrice records the observation and runs risk evaluation, issuing a
// sell when a rule fires. Exported indirectly for deterministic tests via
// OnPrice.
func (s *TradingService) applyPrice(ctx context.Context, mp *managedPosition, observed domain.Price) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Position may have been archived between snapshot and lock.
	if s.lookup(mp.pos.ID) != mp {
		return
	}

	mp.pos.MarkPrice(observed.Value, observed.Source, observed.At, s.cfg.PriceHistoryCap)

	if !mp.pos.IsActive() || mp.retryPending {
		return
	}
	instr := s.riskEng.Evaluate(ctx, mp.pos, observed.Value)
	if instr == nil {
		return
	}

	if err := s.requestSellLocked(ctx, mp, instr.Percent, instr.Reason, instr.Level); err != nil {
		// Synchronous failure: let the level fire again on a later update.
		if instr.Level > 0 {
			s.riskEng.RollbackTrigger(mp.pos, instr.Level)
		}
		s.logger.Error(ctx, err, "Risk-triggered sell request failed", map[string]interface{}{
			"positionID": mp.pos.ID, "reason": instr.Reason,
		})
	}
}

// OnPrice feeds one price observation for a position into the engine,
// exactly as the polling loops would. It exists so event-driven feeds and
// tests can bypass the oracle.
func (s *TradingService) OnPrice(ctx context.Context, positionID string, observed domain.Price) error {
	mp := s.lookup(positionID)
	if mp == nil {
		return fmt.Errorf("position %s: %w", positionID, ports.ErrNotFound)
	}
	s.applyPrice(ctx, mp, observed)
	return nil
}

// OpenPosition registers a filled buy as a new ACTIVE position: risk
// parameters are derived from the entry price, the position is persisted
// and announced.
type OpenParams struct {
	TokenAddress   string
	Symbol         string
	Quantity       float64 // Tokens acquired
	InvestedAmount float64 // Quote spent (SOL)
	EntryPrice     float64 // Quote per token; derived from the fill
	BaseDecimals   uint8
	Signature      string // Entry transaction signature
}

func (s *TradingService) OpenPosition(ctx context.Context, params OpenParams) (*domain.Position, error) {
	op := "openPosition"
	if params.TokenAddress == "" || params.Quantity <= 0 || params.EntryPrice <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrInvalidRequest)
	}

	stop, levels := s.riskEng.InitialRisk(params.EntryPrice)
	now := time.Now().UTC()
	pos := &domain.Position{
		ID:                uuid.NewString(),
		TokenAddress:      params.TokenAddress,
		Symbol:            params.Symbol,
		BaseDecimals:      params.BaseDecimals,
		EntryPrice:        params.EntryPrice,
		Quantity:          params.Quantity,
		RemainingQuantity: params.Quantity,
		InvestedAmount:    params.InvestedAmount,
		StopLossPrice:     stop,
		TakeProfitLevels:  levels,
		Status:            domain.StatusActive,
		EntryTime:         now,
		CurrentPrice:      params.EntryPrice,
		CurrentValue:      params.Quantity * params.EntryPrice,
		LastPriceUpdate:   now,
	}

	if err := s.store.Save(ctx, pos); err != nil {
		return nil, fmt.Errorf("%s: failed to persist new position: %w", op, err)
	}

	s.mu.Lock()
	s.positions[pos.ID] = &managedPosition{pos: pos}
	s.mu.Unlock()

	s.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"positionID": pos.ID, "token": pos.TokenAddress, "symbol": pos.Symbol,
		"entryPrice": pos.EntryPrice, "quantity": pos.Quantity, "stopLoss": pos.StopLossPrice,
	})
	s.events.Publish(ctx, ports.PositionEvent{
		Type: ports.EventPositionOpened, Position: pos.Clone(), At: now,
	})
	return pos.Clone(), nil
}

// EnterPosition executes the full entry flow for a token mint: resolve the
// pool (waiting for its creation if needed), submit the buy, wait for
// confirmation, settle the executed amounts and open the position.
func (s *TradingService) EnterPosition(ctx context.Context, mintStr, symbol string) (*domain.Position, error) {
	op := "enterPosition"
	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid mint %q: %w", op, mintStr, ports.ErrInvalidRequest)
	}

	resolved, err := s.resolver.Resolve(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info(ctx, op+": Pool resolved", map[string]interface{}{
		"mint": mintStr, "pool": resolved.Pool.Address, "retries": resolved.Retries,
	})

	budget := uint64(s.cfg.BuyAmountSOL * lamportsPerSOL)
	sub, err := s.executor.ExecuteBuy(ctx, resolved.Pool, budget)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.awaitConfirmation(ctx, sub.Signature)
	if err != nil {
		return nil, fmt.Errorf("%s: buy %s not confirmed: %w", op, sub.Signature, err)
	}

	ev := s.executor.Settle(tx, sub, s.wallet, mint)
	quantity := rawToTokens(ev.BaseAmount, resolved.Pool.BaseDecimals)
	invested := float64(ev.UserQuoteAmount) / lamportsPerSOL
	if quantity <= 0 || invested <= 0 {
		return nil, fmt.Errorf("%s: settled to empty fill: %w", op, ports.ErrEventDecodeFailed)
	}
	if !ev.Exact {
		s.logger.Warn(ctx, op+": Entry settled from estimate, amounts are inexact", map[string]interface{}{
			"signature": sub.Signature.String(),
		})
	}

	return s.OpenPosition(ctx, OpenParams{
		TokenAddress:   mintStr,
		Symbol:         symbol,
		Quantity:       quantity,
		InvestedAmount: invested,
		EntryPrice:     invested / quantity,
		BaseDecimals:   resolved.Pool.BaseDecimals,
		Signature:      sub.Signature.String(),
	})
}

// awaitConfirmation polls a signature synchronously, bounded by the sell
// retry budget. Used only for entries; sells confirm asynchronously.
func (s *TradingService) awaitConfirmation(ctx context.Context, sig solana.Signature) (*ports.ConfirmedTransaction, error) {
	for attempt := 0; attempt < s.cfg.MaxSellRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.ConfirmCheckDelay):
		}

		status, err := s.ledgerStatus(ctx, sig)
		if err != nil {
			continue // Not visible yet, counted toward the budget
		}
		if status.Err != "" {
			return nil, fmt.Errorf("%w: %s", ports.ErrSubmissionFailed, status.Err)
		}
		if status.Confirmed {
			return s.ledgerTransaction(ctx, sig)
		}
	}
	return nil, ports.ErrConfirmationTimeout
}

// RequestSell requests a sell of pct (0..1] of the position's remaining
// quantity. Fails fast when another sell is already in flight.
func (s *TradingService) RequestSell(ctx context.Context, positionID string, pct float64, reason domain.SellReason) error {
	if pct <= 0 || pct > 1 {
		return fmt.Errorf("sell percent must be in (0, 1]: %w", ports.ErrInvalidRequest)
	}
	mp := s.lookup(positionID)
	if mp == nil {
		return fmt.Errorf("position %s: %w", positionID, ports.ErrNotFound)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return s.requestSellLocked(ctx, mp, pct, reason, 0)
}

// requestSellLocked transitions ACTIVE -> PENDING_SELL and dispatches the
// swap. Caller must hold mp.mu. The PENDING_SELL status itself is the
// mutual exclusion: a second request while one is outstanding fails fast.
func (s *TradingService) requestSellLocked(ctx context.Context, mp *managedPosition, pct float64, reason domain.SellReason, level int) error {
	op := "requestSell"
	pos := mp.pos

	switch pos.Status {
	case domain.StatusActive:
		// Proceed
	case domain.StatusPendingSell:
		return fmt.Errorf("%s: position %s: %w", op, pos.ID, ports.ErrSellInFlight)
	default:
		return fmt.Errorf("%s: position %s in status %s: %w", op, pos.ID, pos.Status, ports.ErrPositionNotActive)
	}

	sellQty := pos.RemainingQuantity * pct
	pos.Status = domain.StatusPendingSell
	pos.PendingTokenAmount = sellQty
	pos.PendingSellPercent = pct
	pos.PendingReason = reason
	pos.PendingTakeProfitAt = level
	mp.retryPending = false

	if err := s.store.Save(ctx, pos); err != nil {
		s.logger.Error(ctx, err, op+": Failed to persist pending state", map[string]interface{}{"positionID": pos.ID})
		// Keep going: losing persistence is worse than losing this write,
		// the next transition persists again.
	}

	s.logger.Info(ctx, op+": Dispatching sell", map[string]interface{}{
		"positionID": pos.ID, "percent": pct, "quantity": sellQty, "reason": reason,
	})

	sub, err := s.dispatchSell(ctx, pos, sellQty)
	if err != nil {
		// Rejected before confirmation: revert so the position is never lost.
		pos.Status = domain.StatusActive
		pos.ClearPending()
		if saveErr := s.store.Save(ctx, pos); saveErr != nil {
			s.logger.Error(ctx, saveErr, op+": Failed to persist revert", map[string]interface{}{"positionID": pos.ID})
		}
		return fmt.Errorf("%s: position %s: %w", op, pos.ID, err)
	}

	mp.submission = sub
	pos.PendingTxSignature = sub.Signature.String()
	pos.PendingEstProceeds = float64(sub.QuoteAmount) / lamportsPerSOL
	if err := s.store.Save(ctx, pos); err != nil {
		s.logger.Error(ctx, err, op+": Failed to persist signature", map[string]interface{}{"positionID": pos.ID})
	}

	s.events.Publish(ctx, ports.PositionEvent{
		Type: ports.EventSellRequested, Position: pos.Clone(), Reason: reason, At: time.Now().UTC(),
	})
	s.scheduleConfirmCheckLocked(mp, s.cfg.ConfirmCheckDelay)
	return nil
}

// dispatchSell resolves the pool and submits the swap.
func (s *TradingService) dispatchSell(ctx context.Context, pos *domain.Position, sellQty float64) (*swap.Submission, error) {
	mint, err := solana.PublicKeyFromBase58(pos.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid token address %q: %w", pos.TokenAddress, ports.ErrInvalidRequest)
	}
	p, err := s.resolver.GetPool(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrSubmissionFailed, err)
	}
	raw := tokensToRaw(sellQty, p.BaseDecimals)
	if raw == 0 {
		return nil, fmt.Errorf("sell quantity %v rounds to zero units: %w", sellQty, ports.ErrInvalidRequest)
	}
	return s.executor.ExecuteSell(ctx, p, raw)
}

// scheduleConfirmCheck arms the confirmation check for a position's pending
// sell, replacing any previously armed check.
func (s *TradingService) scheduleConfirmCheck(positionID string, delay time.Duration) {
	mp := s.lookup(positionID)
	if mp == nil {
		return
	}
	mp.mu.Lock()
	s.scheduleConfirmCheckLocked(mp, delay)
	mp.mu.Unlock()
}

// scheduleConfirmCheckLocked is scheduleConfirmCheck for callers already
// holding mp.mu.
func (s *TradingService) scheduleConfirmCheckLocked(mp *managedPosition, delay time.Duration) {
	if mp.cancelCheck != nil {
		mp.cancelCheck()
	}
	id := mp.pos.ID
	mp.cancelCheck = s.scheduler.Schedule(delay, func() {
		s.confirmCheck(context.Background(), id)
	})
}

// confirmCheck resolves one pending sell: settled, retried, or escalated.
func (s *TradingService) confirmCheck(ctx context.Context, positionID string) {
	op := "confirmCheck"
	mp := s.lookup(positionID)
	if mp == nil {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pos := mp.pos
	if pos.Status != domain.StatusPendingSell {
		return // Settled or force-closed in the meantime
	}
	if mp.submission == nil {
		// Restored after a restart: rebuild the settlement fallback from the
		// persisted pending fields so the sell is still confirmed, retried or
		// escalated rather than left hanging.
		sig, serr := solana.SignatureFromBase58(pos.PendingTxSignature)
		if pos.PendingTxSignature == "" || serr != nil {
			s.logger.Warn(ctx, op+": Pending sell has no usable signature", map[string]interface{}{
				"positionID": pos.ID, "signature": pos.PendingTxSignature,
			})
			s.handleUnconfirmedLocked(ctx, mp)
			return
		}
		mp.submission = &swap.Submission{
			Signature:   sig,
			Side:        domain.Sell,
			BaseAmount:  tokensToRaw(pos.PendingTokenAmount, pos.BaseDecimals),
			QuoteAmount: uint64(pos.PendingEstProceeds * lamportsPerSOL),
		}
	}
	sub := mp.submission

	status, err := s.ledgerStatus(ctx, sub.Signature)
	confirmed := err == nil && status.Confirmed && status.Err == ""
	failed := err == nil && status.Err != ""

	if !confirmed {
		if failed {
			s.logger.Warn(ctx, op+": Sell failed on-chain, will retry", map[string]interface{}{
				"positionID": pos.ID, "signature": sub.Signature.String(), "error": status.Err,
			})
		} else {
			s.logger.Warn(ctx, op+": Sell not confirmed yet", map[string]interface{}{
				"positionID": pos.ID, "signature": sub.Signature.String(), "retryCount": pos.RetryCount,
			})
		}
		s.handleUnconfirmedLocked(ctx, mp)
		return
	}

	tx, err := s.ledgerTransaction(ctx, sub.Signature)
	if err != nil || tx.Failed {
		s.logger.Warn(ctx, op+": Confirmed transaction not retrievable", map[string]interface{}{
			"positionID": pos.ID, "signature": sub.Signature.String(),
		})
		s.handleUnconfirmedLocked(ctx, mp)
		return
	}

	mint, merr := solana.PublicKeyFromBase58(pos.TokenAddress)
	if merr != nil {
		s.logger.Error(ctx, merr, op+": Invalid token address on position", map[string]interface{}{"positionID": pos.ID})
		return
	}
	ev := s.executor.Settle(tx, sub, s.wallet, mint)

	soldQty := rawToTokens(ev.BaseAmount, pos.BaseDecimals)
	if soldQty <= 0 || soldQty > pos.RemainingQuantity {
		soldQty = pos.PendingTokenAmount
	}
	proceeds := float64(ev.UserQuoteAmount) / lamportsPerSOL
	pnl := proceeds - pos.EntryPrice*soldQty

	if !ev.Exact {
		s.logger.Warn(ctx, op+": Sell settled from estimate, amounts are inexact", map[string]interface{}{
			"positionID": pos.ID, "signature": sub.Signature.String(),
		})
	}
	s.completeSellLocked(ctx, mp, soldQty, proceeds, pnl, sub.Signature.String())
}

// handleUnconfirmedLocked counts an unconfirmed or failed sell toward the
// retry budget: below the ceiling the position reverts to ACTIVE and the
// same sell is re-attempted after a short delay; at the ceiling it is
// escalated to manual review. Caller must hold mp.mu.
func (s *TradingService) handleUnconfirmedLocked(ctx context.Context, mp *managedPosition) {
	op := "handleUnconfirmed"
	pos := mp.pos
	pos.RetryCount++

	if pos.RetryCount >= s.cfg.MaxSellRetries {
		s.logger.Error(ctx, ports.ErrRetryBudgetExhausted, op+": Escalating to manual review", map[string]interface{}{
			"positionID": pos.ID, "retryCount": pos.RetryCount, "signature": pos.PendingTxSignature,
		})
		s.archiveLocked(ctx, mp, domain.StatusManualReview, pos.PendingReason)
		return
	}

	pct := pos.PendingSellPercent
	reason := pos.PendingReason
	level := pos.PendingTakeProfitAt
	retryCount := pos.RetryCount

	pos.Status = domain.StatusActive
	pos.PendingTxSignature = ""
	mp.submission = nil
	mp.retryPending = true
	if err := s.store.Save(ctx, pos); err != nil {
		s.logger.Error(ctx, err, op+": Failed to persist retry state", map[string]interface{}{"positionID": pos.ID})
	}

	id := pos.ID
	mp.cancelCheck = s.scheduler.Schedule(s.cfg.SellRetryDelay, func() {
		s.retrySell(context.Background(), id, pct, reason, level, retryCount)
	})
	s.logger.Info(ctx, op+": Sell re-attempt scheduled", map[string]interface{}{
		"positionID": pos.ID, "retryCount": retryCount, "maxRetries": s.cfg.MaxSellRetries,
	})
}

// retrySell re-dispatches an unconfirmed sell, carrying the retry count
// across the attempt.
func (s *TradingService) retrySell(ctx context.Context, positionID string, pct float64, reason domain.SellReason, level, retryCount int) {
	mp := s.lookup(positionID)
	if mp == nil {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.retryPending = false
	if !mp.pos.IsActive() {
		return
	}
	err := s.requestSellLocked(ctx, mp, pct, reason, level)
	// The dispatch path clears pending state on failure; keep the budget
	// already spent so the escalation ceiling still holds.
	mp.pos.RetryCount = retryCount
	if err != nil {
		s.logger.Error(ctx, err, "Sell re-attempt failed", map[string]interface{}{"positionID": positionID})
		if level > 0 {
			// Re-arm the level so the next price evaluation can issue the
			// sell again; the preserved retry count keeps the escalation
			// ceiling intact across that re-issue.
			s.riskEng.RollbackTrigger(mp.pos, level)
		}
		if serr := s.store.Save(ctx, mp.pos); serr != nil {
			s.logger.Error(ctx, serr, "Failed to persist rolled-back trigger", map[string]interface{}{"positionID": positionID})
		}
	}
}

// completeSellLocked applies a settled sell: the position either returns to
// ACTIVE with the slice recorded, or is finalized when the remainder falls
// below the dust thresholds. Caller must hold mp.mu.
func (s *TradingService) completeSellLocked(ctx context.Context, mp *managedPosition, soldQty, proceeds, pnl float64, signature string) {
	op := "completeSell"
	pos := mp.pos

	remainingAfter := pos.RemainingQuantity - soldQty
	if remainingAfter < 0 {
		remainingAfter = 0
	}
	probe := *pos
	probe.RemainingQuantity = remainingAfter
	final := probe.IsDustBelow(s.cfg.MinRemainingQty, s.cfg.MinRemainingPct)

	reason := pos.PendingReason
	level := pos.PendingTakeProfitAt
	recordQty := soldQty
	if final {
		// Fold any abandoned dust remainder into the closing slice so the
		// books still balance against the acquired quantity.
		recordQty = pos.RemainingQuantity
	}
	sale := domain.PartialSell{
		At:           time.Now().UTC(),
		SoldQuantity: recordQty,
		Proceeds:     proceeds,
		RealizedPnL:  pnl,
		Reason:       reason,
		Signature:    signature,
		Final:        final,
	}
	pos.RecordPartialSell(sale)
	pos.ClearPending()
	mp.submission = nil
	mp.retryPending = false

	if level > 0 {
		s.riskEng.RatchetStop(ctx, pos, level)
	}

	if final {
		s.logger.Info(ctx, op+": Position fully sold", map[string]interface{}{
			"positionID": pos.ID, "soldQuantity": soldQty, "proceeds": proceeds,
			"pnl": pnl, "totalPnL": pos.TotalRealizedPnL,
		})
		s.archiveLocked(ctx, mp, domain.StatusClosed, reason)
		return
	}

	pos.Status = domain.StatusActive
	pos.CurrentValue = pos.RemainingQuantity * pos.CurrentPrice
	if err := s.store.Save(ctx, pos); err != nil {
		s.logger.Error(ctx, err, op+": Failed to persist completed sell", map[string]interface{}{"positionID": pos.ID})
	}
	s.logger.Info(ctx, op+": Partial sell completed", map[string]interface{}{
		"positionID": pos.ID, "soldQuantity": soldQty, "remaining": pos.RemainingQuantity,
		"proceeds": proceeds, "pnl": pnl,
	})
	s.events.Publish(ctx, ports.PositionEvent{
		Type: ports.EventSellCompleted, Position: pos.Clone(), Reason: reason, At: time.Now().UTC(),
	})
}

// archiveLocked moves a position out of the live set into the trade-history
// log with the given terminal status. Caller must hold mp.mu.
func (s *TradingService) archiveLocked(ctx context.Context, mp *managedPosition, status domain.PositionStatus, reason domain.SellReason) {
	op := "archive"
	pos := mp.pos
	pos.Status = status
	if mp.cancelCheck != nil {
		mp.cancelCheck()
		mp.cancelCheck = nil
	}

	exitPrice := pos.CurrentPrice
	if n := len(pos.PartialSells); n > 0 && pos.PartialSells[n-1].SoldQuantity > 0 {
		last := pos.PartialSells[n-1]
		exitPrice = last.Proceeds / last.SoldQuantity
	}
	pnlPct := 0.0
	if pos.InvestedAmount > 0 {
		pnlPct = pos.TotalRealizedPnL / pos.InvestedAmount * 100
	}
	trade := &domain.Trade{
		PositionID:     pos.ID,
		TokenAddress:   pos.TokenAddress,
		Symbol:         pos.Symbol,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      exitPrice,
		Quantity:       pos.Quantity,
		InvestedAmount: pos.InvestedAmount,
		RealizedPnL:    pos.TotalRealizedPnL,
		RealizedPnLPct: pnlPct,
		ExitReason:     reason,
		Status:         status,
		EntryTime:      pos.EntryTime,
		ExitTime:       time.Now().UTC(),
	}
	if _, err := s.history.Append(ctx, trade); err != nil {
		s.logger.Error(ctx, err, op+": Failed to append trade history", map[string]interface{}{"positionID": pos.ID})
	}
	if err := s.store.Delete(ctx, pos.ID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.logger.Error(ctx, err, op+": Failed to delete position from store", map[string]interface{}{"positionID": pos.ID})
	}

	s.mu.Lock()
	delete(s.positions, pos.ID)
	s.mu.Unlock()

	evType := ports.EventPositionClosed
	if status == domain.StatusManualReview {
		evType = ports.EventManualReview
	}
	s.logger.Info(ctx, op+": Position archived", map[string]interface{}{
		"positionID": pos.ID, "status": status, "reason": reason, "pnl": pos.TotalRealizedPnL,
	})
	s.events.Publish(ctx, ports.PositionEvent{
		Type: evType, Position: pos.Clone(), Reason: reason, At: time.Now().UTC(),
	})
}

// ForceClose archives a position as CLOSED without touching the swap path.
// The remaining quantity is settled at its current book value so the
// conservation invariant holds. Safe to call regardless of in-flight state.
func (s *TradingService) ForceClose(ctx context.Context, positionID string, reason domain.SellReason) error {
	mp := s.lookup(positionID)
	if mp == nil {
		return fmt.Errorf("position %s: %w", positionID, ports.ErrNotFound)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pos := mp.pos
	if pos.RemainingQuantity > 0 {
		pos.RecordPartialSell(domain.PartialSell{
			At:           time.Now().UTC(),
			SoldQuantity: pos.RemainingQuantity,
			Proceeds:     pos.RemainingQuantity * pos.CurrentPrice,
			RealizedPnL:  (pos.CurrentPrice - pos.EntryPrice) * pos.RemainingQuantity,
			Reason:       reason,
			Final:        true,
		})
	}
	pos.ClearPending()
	mp.submission = nil
	mp.retryPending = false
	s.archiveLocked(ctx, mp, domain.StatusClosed, reason)
	return nil
}

// EmergencyStopAll force-closes every live position. Administrative escape
// hatch for operational use only.
func (s *TradingService) EmergencyStopAll(ctx context.Context) {
	s.logger.Warn(ctx, "EMERGENCY STOP: force-closing all positions")
	for _, mp := range s.snapshot() {
		mp.mu.Lock()
		id := mp.pos.ID
		mp.mu.Unlock()
		if err := s.ForceClose(ctx, id, domain.ReasonEmergencyStop); err != nil && !errors.Is(err, ports.ErrNotFound) {
			s.logger.Error(ctx, err, "Emergency close failed", map[string]interface{}{"positionID": id})
		}
	}
}

// Position returns a snapshot of one live position.
func (s *TradingService) Position(positionID string) (*domain.Position, bool) {
	mp := s.lookup(positionID)
	if mp == nil {
		return nil, false
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.pos.Clone(), true
}

// Positions returns snapshots of all live positions.
func (s *TradingService) Positions() []*domain.Position {
	mps := s.snapshot()
	out := make([]*domain.Position, 0, len(mps))
	for _, mp := range mps {
		mp.mu.Lock()
		out = append(out, mp.pos.Clone())
		mp.mu.Unlock()
	}
	return out
}

// --- Small helpers ---

func (s *TradingService) lookup(positionID string) *managedPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[positionID]
}

func (s *TradingService) snapshot() []*managedPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*managedPosition, 0, len(s.positions))
	for _, mp := range s.positions {
		out = append(out, mp)
	}
	return out
}

// ledgerStatus and ledgerTransaction go through the executor's ledger so
// the service does not need its own client reference.
func (s *TradingService) ledgerStatus(ctx context.Context, sig solana.Signature) (*ports.SignatureStatus, error) {
	return s.executor.LedgerStatus(ctx, sig)
}

func (s *TradingService) ledgerTransaction(ctx context.Context, sig solana.Signature) (*ports.ConfirmedTransaction, error) {
	return s.executor.LedgerTransaction(ctx, sig)
}

func tokensToRaw(qty float64, decimals uint8) uint64 {
	scale := 1.0
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}
	return uint64(qty * scale)
}

func rawToTokens(raw uint64, decimals uint8) float64 {
	scale := 1.0
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}
	return float64(raw) / scale
}
