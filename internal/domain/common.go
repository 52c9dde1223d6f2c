package domain

import "strconv"

// TradeSide represents the direction of a swap (BUY or SELL).
type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

// PositionStatus represents the lifecycle status of a position.
type PositionStatus string

const (
	StatusActive       PositionStatus = "ACTIVE"
	StatusPendingSell  PositionStatus = "PENDING_SELL"
	StatusClosed       PositionStatus = "CLOSED"
	StatusManualReview PositionStatus = "MANUAL_REVIEW_NEEDED"
)

// SellReason indicates why a sell was requested or a position was closed.
type SellReason string

const (
	ReasonStopLoss      SellReason = "stop loss"
	ReasonManual        SellReason = "manual"
	ReasonEmergencyStop SellReason = "emergency stop"
)

// TakeProfitReason returns the canonical reason string for a take-profit
// level (1-based), e.g. "take profit 2".
func TakeProfitReason(level int) SellReason {
	return SellReason("take profit " + strconv.Itoa(level))
}

// PriceSource tags where a price observation came from.
type PriceSource string

const (
	SourceFast     PriceSource = "fast"
	SourceFallback PriceSource = "fallback"
	SourceCache    PriceSource = "cache"
)
