package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

type mockLogger struct {
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testEvent(id string) ports.PositionEvent {
	return ports.PositionEvent{
		Type:     ports.EventPositionClosed,
		Position: &domain.Position{ID: id},
		Reason:   domain.ReasonManual,
		At:       time.Now(),
	}
}

func TestMemBus_FanOut(t *testing.T) {
	bus := New(&mockLogger{})
	defer bus.Close()
	first := bus.Subscribe(4)
	second := bus.Subscribe(4)

	bus.Publish(context.Background(), testEvent("pos-1"))

	for _, ch := range []<-chan ports.PositionEvent{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, "pos-1", ev.Position.ID)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestMemBus_SlowSubscriberDrops(t *testing.T) {
	logger := &mockLogger{}
	bus := New(logger)
	defer bus.Close()
	ch := bus.Subscribe(1)

	bus.Publish(context.Background(), testEvent("pos-1"))
	bus.Publish(context.Background(), testEvent("pos-2"))

	ev := <-ch
	assert.Equal(t, "pos-1", ev.Position.ID)
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
	require.Len(t, logger.warnMsgs, 1)
}

func TestMemBus_Close(t *testing.T) {
	bus := New(&mockLogger{})
	ch := bus.Subscribe(1)
	bus.Close()

	_, open := <-ch
	assert.False(t, open, "channel must be closed")

	// Publishing after close is a no-op, not a panic.
	bus.Publish(context.Background(), testEvent("pos-1"))
}
