package price

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/pool"
	"solSniperBot/internal/ports"

	"github.com/gagliardetto/solana-go"
)

// Oracle computes spot prices from pool reserves. Two read paths exist: the
// fast path reads the two reserve vaults directly for a known pool, the
// fallback path re-resolves the pool from the mint and prices its snapshot.
// Computed prices are cached per lookup key with a bounded TTL so the fast
// polling loop does not hammer the RPC endpoint.
type Oracle struct {
	ledger   ports.LedgerClient
	resolver *pool.Resolver
	logger   ports.Logger
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]domain.Price
}

// Config holds configuration for the price oracle.
type Config struct {
	Ledger   ports.LedgerClient
	Resolver *pool.Resolver
	Logger   ports.Logger
	CacheTTL time.Duration
}

// NewOracle creates a new price oracle.
func NewOracle(cfg Config) (*Oracle, error) {
	if cfg.Ledger == nil || cfg.Resolver == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for price oracle")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CacheTTL must be positive")
	}
	return &Oracle{
		ledger:   cfg.Ledger,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		cacheTTL: cfg.CacheTTL,
		cache:    make(map[string]domain.Price),
	}, nil
}

// FastPrice reads the pool's two reserve vaults directly and computes
// price = normalized quote reserve / normalized base reserve. A read within
// the cache TTL returns the cached value without a network round-trip.
func (o *Oracle) FastPrice(ctx context.Context, p *domain.Pool) (domain.Price, error) {
	if cached, ok := o.cached(p.Address); ok {
		return cached, nil
	}

	baseVault, err := solana.PublicKeyFromBase58(p.BaseVault)
	if err != nil {
		return domain.Price{}, fmt.Errorf("invalid base vault %q: %w", p.BaseVault, ports.ErrInvalidRequest)
	}
	quoteVault, err := solana.PublicKeyFromBase58(p.QuoteVault)
	if err != nil {
		return domain.Price{}, fmt.Errorf("invalid quote vault %q: %w", p.QuoteVault, ports.ErrInvalidRequest)
	}

	baseBal, err := o.ledger.GetTokenAccountBalance(ctx, baseVault)
	if err != nil {
		return domain.Price{}, fmt.Errorf("fast price read for pool %s: %w: %v", p.Address, ports.ErrPriceUnavailable, err)
	}
	quoteBal, err := o.ledger.GetTokenAccountBalance(ctx, quoteVault)
	if err != nil {
		return domain.Price{}, fmt.Errorf("fast price read for pool %s: %w: %v", p.Address, ports.ErrPriceUnavailable, err)
	}

	snapshot := domain.Pool{
		BaseReserve:   baseBal.Amount,
		QuoteReserve:  quoteBal.Amount,
		BaseDecimals:  baseBal.Decimals,
		QuoteDecimals: quoteBal.Decimals,
	}
	value := snapshot.SpotPrice()
	if value <= 0 {
		// Empty reserves are never a valid price of zero.
		return domain.Price{}, fmt.Errorf("pool %s has empty reserves: %w", p.Address, ports.ErrPriceUnavailable)
	}

	price := domain.Price{Value: value, Source: domain.SourceFast, At: time.Now()}
	o.store(p.Address, price)
	return price, nil
}

// FallbackPrice re-resolves the pool for a mint (bypassing the pool cache)
// and computes the price from the fresh snapshot. Used for positions whose
// fast read has not succeeded within the staleness window.
func (o *Oracle) FallbackPrice(ctx context.Context, mint solana.PublicKey) (domain.Price, error) {
	if cached, ok := o.cached(mint.String()); ok {
		return cached, nil
	}

	p, err := o.resolver.Refresh(ctx, mint)
	if err != nil {
		return domain.Price{}, fmt.Errorf("fallback price for mint %s: %w: %v", mint, ports.ErrPriceUnavailable, err)
	}
	value := p.SpotPrice()
	if value <= 0 {
		return domain.Price{}, fmt.Errorf("pool %s has empty reserves: %w", p.Address, ports.ErrPriceUnavailable)
	}

	price := domain.Price{Value: value, Source: domain.SourceFallback, At: time.Now()}
	o.store(mint.String(), price)
	return price, nil
}

func (o *Oracle) cached(key string) (domain.Price, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	price, ok := o.cache[key]
	if !ok || time.Since(price.At) >= o.cacheTTL {
		return domain.Price{}, false
	}
	price.Source = domain.SourceCache
	return price, true
}

func (o *Oracle) store(key string, price domain.Price) {
	o.mu.Lock()
	o.cache[key] = price
	o.mu.Unlock()
}
