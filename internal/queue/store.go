package queue

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
)

// Store owns the canonical QueueState. Deltas are folded in by Apply; the
// reorder coordinator and resynchronizer swap whole snapshots via Replace.
// Nothing outside this package mutates the state directly.
type Store struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	state domain.QueueState

	subMu   sync.Mutex
	subs    map[int]func(domain.QueueState)
	nextSub int
}

// NewStore returns an empty queue store using the given clock for
// LastUpdated stamps. Pass clockwork.NewRealClock() in production.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock: clock,
		state: domain.QueueState{Teams: []domain.Team{}},
		subs:  make(map[int]func(domain.QueueState)),
	}
}

// Apply folds a queue-updated delta into canonical state. The delta always
// carries the full teams array, so this is a replace, not a merge: the
// server is authoritative and cheap to resend in full, and last-delta-wins
// at snapshot granularity is correct under in-order-per-topic delivery.
// Applying the same delta twice yields the same state as applying it once.
func (s *Store) Apply(delta events.QueueUpdatedPayload) {
	teams := make([]domain.Team, len(delta.Teams))
	copy(teams, delta.Teams)
	sort.SliceStable(teams, func(i, j int) bool {
		// Waiting teams order by position; everyone else keeps arrival order
		// after them.
		pi, pj := sortKey(teams[i]), sortKey(teams[j])
		return pi < pj
	})

	next := domain.QueueState{
		Teams:          teams,
		TotalTeams:     delta.TotalTeams,
		AvailableSlots: delta.AvailableSlots,
		LastUpdated:    s.clock.Now(),
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	log.Debug().
		Int("total_teams", next.TotalTeams).
		Int("available_slots", next.AvailableSlots).
		Str("event", delta.Event).
		Msg("queue state replaced from delta")

	s.notify(next)
}

// Replace swaps the canonical state wholesale. Used for optimistic reorder,
// rollback, and reconnect resync.
func (s *Store) Replace(state domain.QueueState) {
	next := state.Clone()
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.notify(next)
}

// State returns a copy of the canonical state.
func (s *Store) State() domain.QueueState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe registers fn to run after every state change. The returned
// function unsubscribes.
func (s *Store) Subscribe(fn func(domain.QueueState)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(state domain.QueueState) {
	s.subMu.Lock()
	fns := make([]func(domain.QueueState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state.Clone())
	}
}

func sortKey(t domain.Team) int {
	if t.Status == domain.TeamStatusWaiting && t.Position > 0 {
		return t.Position
	}
	// Non-waiting teams sort after any plausible queue position.
	return 1 << 20
}
