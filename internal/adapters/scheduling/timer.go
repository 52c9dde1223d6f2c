package scheduling

import (
	"sync"
	"time"

	"solSniperBot/internal/ports"
)

// TimerScheduler implements ports.Scheduler on time.AfterFunc. It tracks
// outstanding timers so a shutdown can cancel everything still pending.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[int]*time.Timer
	nextID int
	closed bool
}

// New creates a wall-clock scheduler.
func New() *TimerScheduler {
	return &TimerScheduler{timers: make(map[int]*time.Timer)}
}

// Schedule runs fn once after d.
func (s *TimerScheduler) Schedule(d time.Duration, fn func()) ports.CancelFunc {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() bool { return false }
	}
	id := s.nextID
	s.nextID++

	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = timer
	s.mu.Unlock()

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.timers[id]
		if !ok {
			return false
		}
		delete(s.timers, id)
		return t.Stop()
	}
}

// Shutdown cancels every pending call. Calls already running are unaffected.
func (s *TimerScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
