package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "trade_history.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTrade(positionID string, pnl float64, status domain.PositionStatus) *domain.Trade {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Trade{
		PositionID:     positionID,
		TokenAddress:   "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
		Symbol:         "TEST",
		EntryPrice:     0.0001,
		ExitPrice:      0.0002,
		Quantity:       1000,
		InvestedAmount: 0.1,
		RealizedPnL:    pnl,
		RealizedPnLPct: pnl / 0.1 * 100,
		ExitReason:     domain.TakeProfitReason(1),
		Status:         status,
		EntryTime:      now.Add(-time.Hour),
		ExitTime:       now,
	}
}

func TestNewRepository(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		repo := newTestRepo(t)
		assert.NotNil(t, repo)
	})

	t.Run("missing logger", func(t *testing.T) {
		_, err := NewRepository(Config{DBPath: "x.db"})
		assert.Error(t, err)
	})
}

func TestRepository_AppendAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	trade := testTrade("pos-1", 0.05, domain.StatusClosed)
	id, err := repo.Append(ctx, trade)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, trade.ID)

	found, err := repo.FindByToken(ctx, trade.TokenAddress, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "pos-1", found[0].PositionID)
	assert.Equal(t, trade.RealizedPnL, found[0].RealizedPnL)
	assert.Equal(t, domain.TakeProfitReason(1), found[0].ExitReason)
	assert.Equal(t, domain.StatusClosed, found[0].Status)
	assert.True(t, trade.EntryTime.Equal(found[0].EntryTime))
}

func TestRepository_FindByToken_OrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trade := testTrade("pos", 0.01, domain.StatusClosed)
		trade.PositionID = trade.PositionID + "-" + string(rune('a'+i))
		trade.EntryTime = trade.EntryTime.Add(time.Duration(i) * time.Minute)
		_, err := repo.Append(ctx, trade)
		require.NoError(t, err)
	}

	found, err := repo.FindByToken(ctx, "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "pos-c", found[0].PositionID, "newest first")
	assert.Equal(t, "pos-b", found[1].PositionID)
}

func TestRepository_Summary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		s, err := repo.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, s.TotalTrades)
		assert.Zero(t, s.TotalPnL)
		assert.Zero(t, s.WinRate)
	})

	t.Run("mixed outcomes", func(t *testing.T) {
		_, err := repo.Append(ctx, testTrade("win-1", 0.05, domain.StatusClosed))
		require.NoError(t, err)
		_, err = repo.Append(ctx, testTrade("win-2", 0.02, domain.StatusClosed))
		require.NoError(t, err)
		_, err = repo.Append(ctx, testTrade("loss-1", -0.03, domain.StatusClosed))
		require.NoError(t, err)
		_, err = repo.Append(ctx, testTrade("stuck-1", -0.01, domain.StatusManualReview))
		require.NoError(t, err)

		s, err := repo.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, s.TotalTrades)
		assert.InDelta(t, 0.03, s.TotalPnL, 1e-9)
		assert.Equal(t, 2, s.Wins)
		assert.InDelta(t, 0.5, s.WinRate, 1e-9)
		assert.Equal(t, 1, s.ManualReviews)
	})
}
