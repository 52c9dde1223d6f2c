package domain

import "time"

// TradeEvent is a decoded on-chain execution record extracted from a
// confirmed transaction's program logs. Amounts are raw chain units
// (lamports for quote, mint-decimal units for base).
type TradeEvent struct {
	Side      TradeSide
	Timestamp time.Time

	BaseAmount      uint64 // Executed base tokens (out for buys, in for sells)
	QuoteLimit      uint64 // Requested bound: max quote in (buy) or min quote out (sell)
	QuoteAmount     uint64 // Quote moved through the pool before fees
	UserQuoteAmount uint64 // Final user-settled quote amount after all fees

	PoolBaseReserve  uint64 // Pool reserve snapshots after the swap
	PoolQuoteReserve uint64
	UserBaseBalance  uint64 // User token account snapshots
	UserQuoteBalance uint64

	LPFee       uint64 // Fee components
	ProtocolFee uint64
	CreatorFee  uint64

	Exact bool // False when the record is a pre-trade estimate fallback
}
