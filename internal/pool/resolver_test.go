package pool

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockLedger serves scripted account lookups: the pool account appears only
// after notFoundFirst calls, mimicking a pool that is still being created.
type mockLedger struct {
	mu            sync.Mutex
	notFoundFirst int
	calls         int
	accountData   []byte
	balances      map[solana.PublicKey]*ports.TokenBalance
}

func (m *mockLedger) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*ports.AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.notFoundFirst {
		return nil, ports.ErrAccountNotFound
	}
	return &ports.AccountInfo{Owner: AmmProgramID, Data: m.accountData}, nil
}

func (m *mockLedger) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*ports.TokenBalance, error) {
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

var (
	testMint      = solana.MustPublicKeyFromBase58("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R")
	testOtherMint = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func testKey(b byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func encodePoolAccount(baseMint solana.PublicKey) []byte {
	data := make([]byte, 0, poolAccountMinLen)
	data = append(data, make([]byte, 8)...) // discriminator
	data = append(data, 254)                // bump
	data = binary.LittleEndian.AppendUint16(data, canonicalPoolIndex)
	data = append(data, testKey(0xAA).Bytes()...) // creator wallet
	data = append(data, baseMint.Bytes()...)
	data = append(data, WSOLMint.Bytes()...)
	data = append(data, testKey(0xBB).Bytes()...) // lp mint
	data = append(data, testKey(0x01).Bytes()...) // base vault
	data = append(data, testKey(0x02).Bytes()...) // quote vault
	data = binary.LittleEndian.AppendUint64(data, 1)
	data = append(data, testKey(0x03).Bytes()...) // coin creator
	return data
}

func testBalances() map[solana.PublicKey]*ports.TokenBalance {
	return map[solana.PublicKey]*ports.TokenBalance{
		testKey(0x01): {Amount: 1_000_000_000_000, Decimals: 6},
		testKey(0x02): {Amount: 100_000_000_000, Decimals: 9},
	}
}

func newTestResolver(t *testing.T, ledger *mockLedger, maxAttempts int) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		Ledger:      ledger,
		Logger:      mockLogger{},
		MaxAttempts: maxAttempts,
		RetryDelay:  time.Millisecond,
		CacheTTL:    time.Minute,
	})
	require.NoError(t, err)
	return r
}

func TestDeriveAddress_Deterministic(t *testing.T) {
	first, err := DeriveAddress(testMint)
	require.NoError(t, err)
	second, err := DeriveAddress(testMint)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same mint must always derive the same pool")

	other, err := DeriveAddress(testOtherMint)
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "different mints must derive different pools")
}

func TestResolve_ImmediateHit(t *testing.T) {
	ledger := &mockLedger{accountData: encodePoolAccount(testMint), balances: testBalances()}
	r := newTestResolver(t, ledger, 5)

	res, err := r.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 0, res.Retries)
	assert.Equal(t, testMint.String(), res.Pool.BaseMint)
	assert.Equal(t, WSOLMint.String(), res.Pool.QuoteMint)
	assert.Equal(t, uint64(1_000_000_000_000), res.Pool.BaseReserve)
	assert.Equal(t, uint64(100_000_000_000), res.Pool.QuoteReserve)
	assert.Equal(t, uint8(6), res.Pool.BaseDecimals)
}

func TestResolve_RetriesUntilPoolAppears(t *testing.T) {
	// The pool account materializes on the third lookup.
	ledger := &mockLedger{notFoundFirst: 2, accountData: encodePoolAccount(testMint), balances: testBalances()}
	r := newTestResolver(t, ledger, 10)

	res, err := r.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, res.Retries)
}

func TestResolve_ExhaustsAttempts(t *testing.T) {
	ledger := &mockLedger{notFoundFirst: 100}
	r := newTestResolver(t, ledger, 3)

	res, err := r.Resolve(context.Background(), testMint)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ports.ErrPoolNotFound)
	assert.Equal(t, 3, ledger.calls)
}

func TestResolve_ContextCancelled(t *testing.T) {
	ledger := &mockLedger{notFoundFirst: 100}
	r := newTestResolver(t, ledger, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, testMint)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_MintMismatch(t *testing.T) {
	// Account exists but belongs to a different base mint.
	ledger := &mockLedger{accountData: encodePoolAccount(testOtherMint), balances: testBalances()}
	r := newTestResolver(t, ledger, 3)

	_, err := r.Resolve(context.Background(), testMint)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestGetPool_ServesFromCache(t *testing.T) {
	ledger := &mockLedger{accountData: encodePoolAccount(testMint), balances: testBalances()}
	r := newTestResolver(t, ledger, 3)

	first, err := r.GetPool(context.Background(), testMint)
	require.NoError(t, err)
	callsAfterFirst := ledger.calls

	second, err := r.GetPool(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, ledger.calls, "fresh cache entry must not hit the ledger")
	assert.Equal(t, first, second)

	// Refresh bypasses the cache unconditionally.
	_, err = r.Refresh(context.Background(), testMint)
	require.NoError(t, err)
	assert.Greater(t, ledger.calls, callsAfterFirst)
}

func TestDecodePoolAccount(t *testing.T) {
	t.Run("valid layout", func(t *testing.T) {
		decoded, err := decodePoolAccount(encodePoolAccount(testMint))
		require.NoError(t, err)
		assert.Equal(t, testMint, decoded.baseMint)
		assert.Equal(t, WSOLMint, decoded.quoteMint)
		assert.Equal(t, testKey(0x01), decoded.baseVault)
		assert.Equal(t, testKey(0x02), decoded.quoteVault)
		assert.Equal(t, testKey(0x03), decoded.coinCreator)
	})

	t.Run("truncated data", func(t *testing.T) {
		_, err := decodePoolAccount(make([]byte, poolAccountMinLen-1))
		assert.Error(t, err)
	})
}
