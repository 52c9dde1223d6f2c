package domain

import (
	"math"
	"time"
)

// QuantityEpsilon is the relative tolerance used when checking that partial
// sells plus the remaining quantity still add up to the acquired quantity.
const QuantityEpsilon = 1e-6

// TakeProfitLevel is one rung of a position's take-profit ladder.
type TakeProfitLevel struct {
	TargetPrice float64 `json:"targetPrice"` // Price at which this level fires
	SellPercent float64 `json:"sellPercent"` // Fraction of remaining quantity to sell (0..1]
	Triggered   bool    `json:"triggered"`   // Set exactly once, before the sell resolves
}

// PartialSell is an append-only record of one executed (or force-settled) sell.
type PartialSell struct {
	At           time.Time  `json:"at"`
	SoldQuantity float64    `json:"soldQuantity"` // Tokens sold in this slice
	Proceeds     float64    `json:"proceeds"`     // Quote currency received (SOL)
	RealizedPnL  float64    `json:"realizedPnl"`
	Reason       SellReason `json:"reason"`
	Signature    string     `json:"signature"` // Transaction signature, empty for force closes
	Final        bool       `json:"final"`     // Marks the sell that closed the position
}

// PricePoint is one entry in a position's bounded price history.
type PricePoint struct {
	Value  float64     `json:"value"`
	Source PriceSource `json:"source"`
	At     time.Time   `json:"at"`
}

// Position represents a single open exposure to one token.
type Position struct {
	ID           string `json:"id"`
	TokenAddress string `json:"tokenAddress"` // Token mint address (base58)
	Symbol       string `json:"symbol"`
	PoolAddress  string `json:"poolAddress,omitempty"` // Cached after first resolve
	BaseDecimals uint8  `json:"baseDecimals"`          // Token mint decimals

	// Economics
	EntryPrice        float64 `json:"entryPrice"`        // Quote per token at entry
	Quantity          float64 `json:"quantity"`          // Tokens acquired
	RemainingQuantity float64 `json:"remainingQuantity"` // Tokens still held
	InvestedAmount    float64 `json:"investedAmount"`    // Quote-currency cost basis

	// Risk parameters
	StopLossPrice    float64           `json:"stopLossPrice"`
	TakeProfitLevels []TakeProfitLevel `json:"takeProfitLevels"` // Ascending target order

	Status    PositionStatus `json:"status"`
	EntryTime time.Time      `json:"entryTime"`

	// Pending-sell bookkeeping, meaningful only while PENDING_SELL.
	PendingTxSignature  string     `json:"pendingTxSignature,omitempty"`
	PendingTokenAmount  float64    `json:"pendingTokenAmount,omitempty"`
	PendingSellPercent  float64    `json:"pendingSellPercent,omitempty"`
	PendingReason       SellReason `json:"pendingReason,omitempty"`
	PendingEstProceeds  float64    `json:"pendingEstProceeds,omitempty"` // Pre-trade estimate, settlement fallback
	PendingTakeProfitAt int        `json:"pendingTakeProfitAt,omitempty"`
	RetryCount          int        `json:"retryCount,omitempty"`

	// History
	PartialSells     []PartialSell `json:"partialSells,omitempty"`
	TotalRealizedPnL float64       `json:"totalRealizedPnl"`

	// Derived/volatile price state
	CurrentPrice    float64      `json:"currentPrice"`
	CurrentValue    float64      `json:"currentValue"`
	UnrealizedPnL   float64      `json:"unrealizedPnl"`
	LastPriceSource PriceSource  `json:"lastPriceSource,omitempty"`
	LastPriceUpdate time.Time    `json:"lastPriceUpdate"`
	PriceHistory    []PricePoint `json:"priceHistory,omitempty"` // Bounded ring, oldest first
}

// IsActive reports whether risk rules may be evaluated for the position.
func (p *Position) IsActive() bool {
	return p.Status == StatusActive
}

// RemainingPercent returns the remaining quantity as a fraction of the
// acquired quantity, 0 when nothing was acquired.
func (p *Position) RemainingPercent() float64 {
	if p.Quantity <= 0 {
		return 0
	}
	return p.RemainingQuantity / p.Quantity
}

// IsDustBelow reports whether the remaining quantity is below either the
// absolute or the percentage dust threshold, i.e. the position should be
// finalized rather than kept partially active.
func (p *Position) IsDustBelow(minQuantity, minPercent float64) bool {
	return p.RemainingQuantity < minQuantity || p.RemainingPercent() < minPercent
}

// MarkPrice records a fresh price observation: sets the derived price
// fields and appends to the bounded history ring.
func (p *Position) MarkPrice(value float64, source PriceSource, at time.Time, historyCap int) {
	p.CurrentPrice = value
	p.CurrentValue = p.RemainingQuantity * value
	p.UnrealizedPnL = (value - p.EntryPrice) * p.RemainingQuantity
	p.LastPriceSource = source
	p.LastPriceUpdate = at

	p.PriceHistory = append(p.PriceHistory, PricePoint{Value: value, Source: source, At: at})
	if historyCap > 0 && len(p.PriceHistory) > historyCap {
		p.PriceHistory = p.PriceHistory[len(p.PriceHistory)-historyCap:]
	}
}

// RecordPartialSell appends a sell slice, reduces the remaining quantity and
// accumulates realized PnL. The caller decides whether the slice is final.
func (p *Position) RecordPartialSell(sale PartialSell) {
	p.PartialSells = append(p.PartialSells, sale)
	p.RemainingQuantity -= sale.SoldQuantity
	if p.RemainingQuantity < 0 {
		p.RemainingQuantity = 0
	}
	p.TotalRealizedPnL += sale.RealizedPnL
}

// ClearPending resets all pending-sell bookkeeping fields.
func (p *Position) ClearPending() {
	p.PendingTxSignature = ""
	p.PendingTokenAmount = 0
	p.PendingSellPercent = 0
	p.PendingReason = ""
	p.PendingEstProceeds = 0
	p.PendingTakeProfitAt = 0
	p.RetryCount = 0
}

// QuantityConserved verifies the conservation invariant: the sum of all sold
// slices plus the remaining quantity equals the acquired quantity within the
// relative epsilon.
func (p *Position) QuantityConserved() bool {
	sold := 0.0
	for _, s := range p.PartialSells {
		sold += s.SoldQuantity
	}
	diff := math.Abs(sold + p.RemainingQuantity - p.Quantity)
	return diff <= QuantityEpsilon*math.Max(p.Quantity, 1)
}

// Clone returns a deep copy, used for event snapshots so subscribers never
// observe a position mid-mutation.
func (p *Position) Clone() *Position {
	cp := *p
	cp.TakeProfitLevels = append([]TakeProfitLevel(nil), p.TakeProfitLevels...)
	cp.PartialSells = append([]PartialSell(nil), p.PartialSells...)
	cp.PriceHistory = append([]PricePoint(nil), p.PriceHistory...)
	return &cp
}
