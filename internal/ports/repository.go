package ports

import (
	"context"

	"solSniperBot/internal/domain"
)

// PositionStore defines the interface for persisting the live-position set.
// It is written after every state transition so a restart can recover
// in-flight positions.
type PositionStore interface {
	// Save writes or overwrites one position keyed by its id.
	Save(ctx context.Context, pos *domain.Position) error
	// Delete removes a position from the live set (after archival).
	Delete(ctx context.Context, id string) error
	// LoadAll returns every persisted live position.
	LoadAll(ctx context.Context) ([]*domain.Position, error)
}

// TradeHistory defines the interface for the append-only trade-history log.
type TradeHistory interface {
	// Append records a closed or archived position and returns its assigned ID.
	Append(ctx context.Context, trade *domain.Trade) (int64, error)
	// Summary recomputes the aggregate over the whole log.
	Summary(ctx context.Context) (*domain.TradeSummary, error)
}
