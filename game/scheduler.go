package game

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler arms one-shot deferred settlement callbacks, one per active game,
// keyed by game id. The callback receives only the id and re-fetches
// everything else from the store, so a fired timer never acts on stale
// captured state. Cancel racing a fired timer is a no-op: the settlement path
// owns its own idempotency through the store's atomic transition.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(id string)
}

// NewScheduler returns a Scheduler that invokes fire(id) when a timer for id
// expires without being canceled first.
func NewScheduler(fire func(id string)) *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer), fire: fire}
}

// Schedule arms a timer for the game id. Scheduling an id that already has a
// pending timer replaces it.
func (s *Scheduler) Schedule(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		// Remove the handle before firing so a Cancel arriving now is a no-op
		// rather than stopping a timer that already went off.
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.fire(id)
	})
	slog.Debug("settlement timer armed", slog.String("game_id", id), slog.Duration("delay", delay))
}

// Cancel stops the pending timer for id if one exists. Canceling after the
// callback has begun running does nothing.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
		slog.Debug("settlement timer canceled", slog.String("game_id", id))
	}
}

// Pending reports how many timers are currently armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer. Called on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
