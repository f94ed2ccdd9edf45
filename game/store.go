package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store holds game records and owns every lifecycle mutation.
// TransitionToSettled is the single entry point for settlement and is atomic
// with respect to concurrent callers: when two settlement attempts race for
// the same id, exactly one succeeds and the other observes ErrAlreadySettled.
type Store interface {
	// Insert adds a game and returns its id. A missing id is assigned.
	Insert(g Game) string
	// Get returns a snapshot of the game with the given id.
	Get(id string) (Game, error)
	// FindActiveByAsset returns the most recent non-settled game for the
	// asset, or ErrGameNotFound if none exists.
	FindActiveByAsset(asset string) (Game, error)
	// Activate moves a pending game to StateActive and records the poll
	// message id. Used only by the start path.
	Activate(id string, pollMessageID int) error
	// Delete removes a game outright. Used only to roll back a failed start;
	// settled games are retained for idempotent re-query.
	Delete(id string)
	// TransitionToSettled settles the game and returns the settled snapshot.
	// Returns ErrAlreadySettled if the game was settled by a racing caller,
	// ErrGameNotFound for an unknown id.
	TransitionToSettled(id string, endPrice decimal.Decimal, side Side) (Game, error)
	// ActiveCount reports how many games are not yet settled.
	ActiveCount() int
	// List returns snapshots of all games, newest first.
	List() []Game
}

// NewStore returns the in-memory Store implementation. A single mutex guards
// the map; every accessor copies records so callers always observe a
// consistent snapshot, never a half-written one.
func NewStore() Store {
	return &memoryStore{games: make(map[string]*Game)}
}

type memoryStore struct {
	mu    sync.Mutex
	games map[string]*Game
}

func (s *memoryStore) Insert(g Game) string {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.StartTime.IsZero() {
		g.StartTime = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := g
	s.games[g.ID] = &cp
	return g.ID
}

func (s *memoryStore) Get(id string) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: id %s", ErrGameNotFound, id)
	}
	return *g, nil
}

func (s *memoryStore) FindActiveByAsset(asset string) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Game
	for _, g := range s.games {
		if g.Asset != asset || g.State == StateSettled {
			continue
		}
		if found == nil || g.StartTime.After(found.StartTime) {
			found = g
		}
	}
	if found == nil {
		return Game{}, fmt.Errorf("%w: no active game for %s", ErrGameNotFound, asset)
	}
	return *found, nil
}

func (s *memoryStore) Activate(id string, pollMessageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrGameNotFound, id)
	}
	if g.State == StateSettled {
		return fmt.Errorf("%w: id %s", ErrAlreadySettled, id)
	}
	g.State = StateActive
	g.PollMessageID = pollMessageID
	return nil
}

func (s *memoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

func (s *memoryStore) TransitionToSettled(id string, endPrice decimal.Decimal, side Side) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: id %s", ErrGameNotFound, id)
	}
	if g.State == StateSettled {
		return Game{}, fmt.Errorf("%w: id %s", ErrAlreadySettled, id)
	}
	g.State = StateSettled
	g.EndPrice = endPrice
	g.WinningSide = side
	g.SettledAt = time.Now().UTC()
	return *g, nil
}

func (s *memoryStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.games {
		if g.State != StateSettled {
			n++
		}
	}
	return n
}

func (s *memoryStore) List() []Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, *g)
	}
	sortGamesNewestFirst(out)
	return out
}

func sortGamesNewestFirst(gs []Game) {
	// Insertion sort; game counts are tiny.
	for i := 1; i < len(gs); i++ {
		for j := i; j > 0 && gs[j].StartTime.After(gs[j-1].StartTime); j-- {
			gs[j], gs[j-1] = gs[j-1], gs[j]
		}
	}
}
