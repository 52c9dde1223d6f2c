package pool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"

	"github.com/gagliardetto/solana-go"
)

// Fixed program identifiers for the venue.
var (
	// PumpProgramID is the token-launch program; the pool authority is
	// derived from it and the token mint.
	PumpProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	// AmmProgramID is the swap venue program owning pool accounts.
	AmmProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	// WSOLMint is the wrapped-native quote mint every pool is paired with.
	WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// canonicalPoolIndex is the index used when the venue created the pool
// as part of a token's bonding-curve migration.
const canonicalPoolIndex uint16 = 0

// Minimum pool account size covering all fields the resolver decodes.
const poolAccountMinLen = 8 + 1 + 2 + 32*6 + 8 + 32

const quoteDecimals = 9 // Lamports per SOL

// ResolveResult carries the resolved pool together with the lookup effort
// spent, for observability and retry accounting.
type ResolveResult struct {
	Pool     *domain.Pool
	Attempts int // Existence lookups performed (>= 1)
	Retries  int // Attempts - 1
}

// Resolver derives and verifies liquidity-pool addresses for token mints.
// Derivation is pure; only the existence check touches the ledger.
type Resolver struct {
	ledger      ports.LedgerClient
	logger      ports.Logger
	maxAttempts int
	retryDelay  time.Duration
	cacheTTL    time.Duration

	mu    sync.Mutex
	cache map[string]*domain.Pool // Keyed by mint, bounded by TTL
}

// Config holds configuration for the pool resolver.
type Config struct {
	Ledger      ports.LedgerClient
	Logger      ports.Logger
	MaxAttempts int           // Existence-check ceiling before ErrPoolNotFound
	RetryDelay  time.Duration // Fixed delay between existence checks
	CacheTTL    time.Duration // How long a fetched pool snapshot stays valid
}

// NewResolver creates a new pool resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Ledger == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for pool resolver")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("MaxAttempts must be positive")
	}
	if cfg.RetryDelay <= 0 {
		return nil, fmt.Errorf("RetryDelay must be positive")
	}
	return &Resolver{
		ledger:      cfg.Ledger,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		cacheTTL:    cfg.CacheTTL,
		cache:       make(map[string]*domain.Pool),
	}, nil
}

// DeriveAddress computes the deterministic pool address for a token mint.
// Stage one derives the pool authority from the launch program and the mint;
// stage two derives the pool from the venue program, the canonical index,
// the authority, the mint and the quote mint. The same mint always yields
// the same address.
func DeriveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	authority, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool-authority"), mint.Bytes()},
		PumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool authority for mint %s: %w", mint, err)
	}

	index := make([]byte, 2)
	binary.LittleEndian.PutUint16(index, canonicalPoolIndex)

	pool, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), index, authority.Bytes(), mint.Bytes(), WSOLMint.Bytes()},
		AmmProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool address for mint %s: %w", mint, err)
	}
	return pool, nil
}

// Resolve derives the pool address for a mint and verifies the account
// exists, retrying with a fixed delay while it has not yet been created
// on-chain. Exhausting the attempt budget yields ErrPoolNotFound.
func (r *Resolver) Resolve(ctx context.Context, mint solana.PublicKey) (*ResolveResult, error) {
	address, err := DeriveAddress(mint)
	if err != nil {
		return nil, err
	}

	attempts := 0
	for {
		attempts++
		pool, err := r.fetchPool(ctx, mint, address)
		if err == nil {
			r.logger.Debug(ctx, "Pool resolved", map[string]interface{}{
				"mint": mint.String(), "pool": address.String(), "attempts": attempts,
			})
			return &ResolveResult{Pool: pool, Attempts: attempts, Retries: attempts - 1}, nil
		}
		if !errors.Is(err, ports.ErrAccountNotFound) {
			return nil, err
		}

		// Absent account means "not yet created", not failure.
		if attempts >= r.maxAttempts {
			r.logger.Warn(ctx, "Pool not found after retries", map[string]interface{}{
				"mint": mint.String(), "pool": address.String(), "attempts": attempts,
			})
			return nil, fmt.Errorf("pool %s for mint %s: %w", address, mint, ports.ErrPoolNotFound)
		}
		r.logger.Debug(ctx, "Pool not created yet, retrying", map[string]interface{}{
			"mint": mint.String(), "attempt": attempts, "maxAttempts": r.maxAttempts,
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pool resolution interrupted: %w", ctx.Err())
		case <-time.After(r.retryDelay):
		}
	}
}

// GetPool returns a pool snapshot for a mint, served from the TTL cache when
// fresh. A cache miss performs a single existence check (no retry loop).
func (r *Resolver) GetPool(ctx context.Context, mint solana.PublicKey) (*domain.Pool, error) {
	r.mu.Lock()
	cached, ok := r.cache[mint.String()]
	r.mu.Unlock()
	if ok && time.Since(cached.FetchedAt) < r.cacheTTL {
		return cached, nil
	}
	return r.Refresh(ctx, mint)
}

// Refresh fetches a fresh pool snapshot for a mint, bypassing the cache.
// Used by the slow fallback price path.
func (r *Resolver) Refresh(ctx context.Context, mint solana.PublicKey) (*domain.Pool, error) {
	address, err := DeriveAddress(mint)
	if err != nil {
		return nil, err
	}
	pool, err := r.fetchPool(ctx, mint, address)
	if err != nil {
		if errors.Is(err, ports.ErrAccountNotFound) {
			return nil, fmt.Errorf("pool %s for mint %s: %w", address, mint, ports.ErrPoolNotFound)
		}
		return nil, err
	}
	r.mu.Lock()
	r.cache[mint.String()] = pool
	r.mu.Unlock()
	return pool, nil
}

// fetchPool loads and decodes the pool account, then reads both reserve
// vault balances.
func (r *Resolver) fetchPool(ctx context.Context, mint, address solana.PublicKey) (*domain.Pool, error) {
	info, err := r.ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}

	decoded, err := decodePoolAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", address, err)
	}
	if !decoded.baseMint.Equals(mint) {
		return nil, fmt.Errorf("pool %s base mint %s does not match %s: %w",
			address, decoded.baseMint, mint, ports.ErrInvalidRequest)
	}

	baseBal, err := r.ledger.GetTokenAccountBalance(ctx, decoded.baseVault)
	if err != nil {
		return nil, err
	}
	quoteBal, err := r.ledger.GetTokenAccountBalance(ctx, decoded.quoteVault)
	if err != nil {
		return nil, err
	}

	return &domain.Pool{
		Address:       address.String(),
		BaseMint:      decoded.baseMint.String(),
		QuoteMint:     decoded.quoteMint.String(),
		BaseVault:     decoded.baseVault.String(),
		QuoteVault:    decoded.quoteVault.String(),
		Creator:       decoded.coinCreator.String(),
		BaseReserve:   baseBal.Amount,
		QuoteReserve:  quoteBal.Amount,
		BaseDecimals:  baseBal.Decimals,
		QuoteDecimals: quoteDecimals,
		FetchedAt:     time.Now(),
	}, nil
}

type poolAccount struct {
	baseMint    solana.PublicKey
	quoteMint   solana.PublicKey
	baseVault   solana.PublicKey
	quoteVault  solana.PublicKey
	coinCreator solana.PublicKey
}

// decodePoolAccount extracts the addresses the engine needs from the raw
// pool account: 8-byte discriminator, bump u8, index u16, then five 32-byte
// keys (creator, base mint, quote mint, lp mint, base vault), the quote
// vault, lp supply u64 and the coin creator.
func decodePoolAccount(data []byte) (*poolAccount, error) {
	if len(data) < poolAccountMinLen {
		return nil, fmt.Errorf("account data too short (%d bytes): %w", len(data), ports.ErrStoreCorrupted)
	}
	off := 8 + 1 + 2 // discriminator + bump + index
	key := func() solana.PublicKey {
		k := solana.PublicKeyFromBytes(data[off : off+32])
		off += 32
		return k
	}

	_ = key() // creator (pool creator wallet, unused)
	out := &poolAccount{}
	out.baseMint = key()
	out.quoteMint = key()
	_ = key() // lp mint
	out.baseVault = key()
	out.quoteVault = key()
	off += 8 // lp supply
	out.coinCreator = solana.PublicKeyFromBytes(data[off : off+32])
	return out, nil
}
