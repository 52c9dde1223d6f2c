package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestStore(t *testing.T) (*PositionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	store, err := NewPositionStore(Config{Path: path, Logger: mockLogger{}})
	require.NoError(t, err)
	return store, path
}

func testPosition(id string, entry time.Time) *domain.Position {
	return &domain.Position{
		ID:                id,
		TokenAddress:      "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
		Symbol:            "TEST",
		EntryPrice:        0.0001,
		Quantity:          1000,
		RemainingQuantity: 1000,
		InvestedAmount:    0.1,
		StopLossPrice:     0.00007,
		TakeProfitLevels: []domain.TakeProfitLevel{
			{TargetPrice: 0.0002, SellPercent: 0.5},
		},
		Status:    domain.StatusActive,
		EntryTime: entry,
	}
}

func TestNewPositionStore(t *testing.T) {
	t.Run("creates data directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "positions.json")
		store, err := NewPositionStore(Config{Path: path, Logger: mockLogger{}})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("missing logger", func(t *testing.T) {
		_, err := NewPositionStore(Config{Path: "x.json"})
		assert.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := NewPositionStore(Config{Logger: mockLogger{}})
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "positions.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := NewPositionStore(Config{Path: path, Logger: mockLogger{}})
		assert.ErrorIs(t, err, ports.ErrStoreCorrupted)
	})
}

func TestPositionStore_SaveAndReload(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	pos := testPosition("pos-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.Save(ctx, pos))

	// Mutating the caller's copy must not leak into the store.
	pos.RemainingQuantity = 0

	// A fresh store over the same file sees the persisted state.
	reloaded, err := NewPositionStore(Config{Path: path, Logger: mockLogger{}})
	require.NoError(t, err)
	all, err := reloaded.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "pos-1", all[0].ID)
	assert.Equal(t, 1000.0, all[0].RemainingQuantity)
	require.Len(t, all[0].TakeProfitLevels, 1)
	assert.Equal(t, 0.0002, all[0].TakeProfitLevels[0].TargetPrice)
}

func TestPositionStore_SaveValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, nil), ports.ErrInvalidRequest)
	assert.ErrorIs(t, store.Save(ctx, &domain.Position{}), ports.ErrInvalidRequest)
}

func TestPositionStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testPosition("pos-1", time.Now())))
	require.NoError(t, store.Delete(ctx, "pos-1"))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, store.Delete(ctx, "pos-1"), ports.ErrNotFound)
}

func TestPositionStore_LoadAllOrdersByEntryTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, testPosition("newest", now)))
	require.NoError(t, store.Save(ctx, testPosition("oldest", now.Add(-2*time.Hour))))
	require.NoError(t, store.Save(ctx, testPosition("middle", now.Add(-time.Hour))))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "oldest", all[0].ID)
	assert.Equal(t, "middle", all[1].ID)
	assert.Equal(t, "newest", all[2].ID)
}

func TestPositionStore_PendingStateSurvivesReload(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	pos := testPosition("pos-1", time.Now())
	pos.Status = domain.StatusPendingSell
	pos.PendingTxSignature = "sig-abc"
	pos.PendingSellPercent = 0.5
	pos.PendingTokenAmount = 500
	pos.PendingReason = domain.ReasonStopLoss
	pos.RetryCount = 2
	require.NoError(t, store.Save(ctx, pos))

	reloaded, err := NewPositionStore(Config{Path: path, Logger: mockLogger{}})
	require.NoError(t, err)
	all, err := reloaded.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusPendingSell, all[0].Status)
	assert.Equal(t, "sig-abc", all[0].PendingTxSignature)
	assert.Equal(t, 2, all[0].RetryCount)
	assert.Equal(t, domain.ReasonStopLoss, all[0].PendingReason)
}
