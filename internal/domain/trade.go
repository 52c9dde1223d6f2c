package domain

import "time"

// Trade represents a closed or archived position in the trade-history log.
type Trade struct {
	ID             int64          // Assigned by the history store
	PositionID     string         // Originating position id
	TokenAddress   string         // Token mint address
	Symbol         string         //
	EntryPrice     float64        // Quote per token at entry
	ExitPrice      float64        // Quote per token at the final sell, 0 if unknown
	Quantity       float64        // Tokens acquired at entry
	InvestedAmount float64        // Quote-currency cost basis
	RealizedPnL    float64        // Sum over all partial sells
	RealizedPnLPct float64        // RealizedPnL / InvestedAmount * 100
	ExitReason     SellReason     // Reason of the final sell or archive
	Status         PositionStatus // CLOSED or MANUAL_REVIEW_NEEDED
	EntryTime      time.Time      //
	ExitTime       time.Time      //
}

// TradeSummary is the aggregate over the whole trade-history log. It is
// recomputed from the log whenever a record is appended.
type TradeSummary struct {
	TotalTrades   int
	TotalPnL      float64
	Wins          int
	WinRate       float64 // Wins / TotalTrades, 0 when no trades
	ManualReviews int
}
