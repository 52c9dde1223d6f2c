package price

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/pool"
	"solSniperBot/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockLedger struct {
	mu           sync.Mutex
	accounts     map[solana.PublicKey]*ports.AccountInfo
	balances     map[solana.PublicKey]*ports.TokenBalance
	balanceCalls int
}

func (m *mockLedger) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*ports.AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.accounts[address]
	if !ok {
		return nil, ports.ErrAccountNotFound
	}
	return info, nil
}

func (m *mockLedger) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*ports.TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceCalls++
	bal, ok := m.balances[account]
	if !ok {
		return nil, ports.ErrAccountNotFound
	}
	return bal, nil
}

func (m *mockLedger) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (m *mockLedger) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (m *mockLedger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (m *mockLedger) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*ports.SignatureStatus, error) {
	return nil, ports.ErrTxNotFound
}

func (m *mockLedger) GetTransaction(ctx context.Context, sig solana.Signature) (*ports.ConfirmedTransaction, error) {
	return nil, ports.ErrTxNotFound
}

var testMint = solana.MustPublicKeyFromBase58("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R")

func testKey(b byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func encodePoolAccount(baseMint solana.PublicKey) []byte {
	data := make([]byte, 0, 8+1+2+32*6+8+32)
	data = append(data, make([]byte, 8)...)
	data = append(data, 254)
	data = binary.LittleEndian.AppendUint16(data, 0)
	data = append(data, testKey(0xAA).Bytes()...)
	data = append(data, baseMint.Bytes()...)
	data = append(data, pool.WSOLMint.Bytes()...)
	data = append(data, testKey(0xBB).Bytes()...)
	data = append(data, testKey(0x01).Bytes()...) // base vault
	data = append(data, testKey(0x02).Bytes()...) // quote vault
	data = binary.LittleEndian.AppendUint64(data, 1)
	data = append(data, testKey(0x03).Bytes()...)
	return data
}

func newTestOracle(t *testing.T, ledger *mockLedger, ttl time.Duration) *Oracle {
	t.Helper()
	resolver, err := pool.NewResolver(pool.Config{
		Ledger: ledger, Logger: mockLogger{},
		MaxAttempts: 3, RetryDelay: time.Millisecond, CacheTTL: time.Minute,
	})
	require.NoError(t, err)

	o, err := NewOracle(Config{Ledger: ledger, Resolver: resolver, Logger: mockLogger{}, CacheTTL: ttl})
	require.NoError(t, err)
	return o
}

func testPool() *domain.Pool {
	return &domain.Pool{
		Address:       "Ei7Bd3UAkVSqqzBo9eJbBWJ8xu8VYWWBPDXxqTSgMVVp",
		BaseMint:      testMint.String(),
		BaseVault:     testKey(0x01).String(),
		QuoteVault:    testKey(0x02).String(),
		BaseDecimals:  6,
		QuoteDecimals: 9,
	}
}

func TestFastPrice(t *testing.T) {
	ledger := &mockLedger{
		balances: map[solana.PublicKey]*ports.TokenBalance{
			testKey(0x01): {Amount: 1_000_000_000_000, Decimals: 6}, // 1,000,000 tokens
			testKey(0x02): {Amount: 100_000_000_000, Decimals: 9},   // 100 SOL
		},
	}
	o := newTestOracle(t, ledger, 2*time.Second)

	got, err := o.FastPrice(context.Background(), testPool())
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, got.Value, 1e-12) // 100 SOL / 1,000,000 tokens
	assert.Equal(t, domain.SourceFast, got.Source)

	// Second read within the TTL comes from the cache.
	cached, err := o.FastPrice(context.Background(), testPool())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, cached.Source)
	assert.Equal(t, got.Value, cached.Value)
	assert.Equal(t, 2, ledger.balanceCalls, "cache hit must not touch the ledger")
}

func TestFastPrice_EmptyReserves(t *testing.T) {
	ledger := &mockLedger{
		balances: map[solana.PublicKey]*ports.TokenBalance{
			testKey(0x01): {Amount: 0, Decimals: 6},
			testKey(0x02): {Amount: 100_000_000_000, Decimals: 9},
		},
	}
	o := newTestOracle(t, ledger, time.Second)

	_, err := o.FastPrice(context.Background(), testPool())
	assert.ErrorIs(t, err, ports.ErrPriceUnavailable)
}

func TestFastPrice_VaultUnreadable(t *testing.T) {
	o := newTestOracle(t, &mockLedger{balances: map[solana.PublicKey]*ports.TokenBalance{}}, time.Second)

	_, err := o.FastPrice(context.Background(), testPool())
	assert.ErrorIs(t, err, ports.ErrPriceUnavailable)
}

func TestFallbackPrice(t *testing.T) {
	poolAddr, err := pool.DeriveAddress(testMint)
	require.NoError(t, err)
	ledger := &mockLedger{
		accounts: map[solana.PublicKey]*ports.AccountInfo{
			poolAddr: {Owner: pool.AmmProgramID, Data: encodePoolAccount(testMint)},
		},
		balances: map[solana.PublicKey]*ports.TokenBalance{
			testKey(0x01): {Amount: 2_000_000_000_000, Decimals: 6},
			testKey(0x02): {Amount: 100_000_000_000, Decimals: 9},
		},
	}
	o := newTestOracle(t, ledger, 2*time.Second)

	got, err := o.FallbackPrice(context.Background(), testMint)
	require.NoError(t, err)
	assert.InDelta(t, 0.00005, got.Value, 1e-12)
	assert.Equal(t, domain.SourceFallback, got.Source)

	cached, err := o.FallbackPrice(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, cached.Source)
}

func TestFallbackPrice_PoolMissing(t *testing.T) {
	o := newTestOracle(t, &mockLedger{accounts: map[solana.PublicKey]*ports.AccountInfo{}}, time.Second)

	_, err := o.FallbackPrice(context.Background(), testMint)
	assert.ErrorIs(t, err, ports.ErrPriceUnavailable)
}
