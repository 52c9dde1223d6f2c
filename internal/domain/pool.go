package domain

import "time"

// Pool is a snapshot of an on-chain liquidity pool pairing a token with the
// wrapped-SOL quote currency. Read-only from the engine's perspective.
type Pool struct {
	Address       string // Pool account address (base58)
	BaseMint      string // Token mint
	QuoteMint     string // Wrapped-SOL mint
	BaseVault     string // Pool token account holding the base reserve
	QuoteVault    string // Pool token account holding the quote reserve
	Creator       string // Pool creator, used for the revenue-share vault
	BaseReserve   uint64 // Raw base token units
	QuoteReserve  uint64 // Raw quote units (lamports)
	BaseDecimals  uint8
	QuoteDecimals uint8
	FetchedAt     time.Time
}

// SpotPrice returns the quote-per-token spot price from normalized reserves,
// or 0 when either reserve is empty (callers treat 0 as unavailable).
func (p *Pool) SpotPrice() float64 {
	if p.BaseReserve == 0 || p.QuoteReserve == 0 {
		return 0
	}
	base := float64(p.BaseReserve) / pow10(p.BaseDecimals)
	quote := float64(p.QuoteReserve) / pow10(p.QuoteDecimals)
	return quote / base
}

func pow10(d uint8) float64 {
	v := 1.0
	for i := uint8(0); i < d; i++ {
		v *= 10
	}
	return v
}

// Price is a single strongly-typed price observation.
type Price struct {
	Value  float64
	Source PriceSource
	At     time.Time
}
