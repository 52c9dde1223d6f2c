package ports

import (
	"context"
	"time"

	"solSniperBot/internal/domain"
)

// PositionEventType identifies what happened to a position.
type PositionEventType string

const (
	EventPositionOpened PositionEventType = "position_opened"
	EventSellRequested  PositionEventType = "sell_requested"
	EventSellCompleted  PositionEventType = "sell_completed"
	EventPositionClosed PositionEventType = "position_closed"
	EventManualReview   PositionEventType = "manual_review"
)

// PositionEvent is an outbound notification published by the orchestrator.
// Position is a deep copy; subscribers may hold it freely.
type PositionEvent struct {
	Type     PositionEventType
	Position *domain.Position
	Reason   domain.SellReason // Set for sell/close/review events
	At       time.Time
}

// EventPublisher lets the orchestrator announce lifecycle transitions
// without depending on any concrete consumer (chat notifier, telemetry).
type EventPublisher interface {
	Publish(ctx context.Context, ev PositionEvent)
}
