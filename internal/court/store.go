package court

import (
	"sync"

	"github.com/courtside/courtside/internal/domain"
)

// Store owns the canonical CourtStatus. Court-status deltas are whole
// snapshots, so Apply is a plain replace.
type Store struct {
	mu    sync.RWMutex
	state domain.CourtStatus
	known bool

	subMu   sync.Mutex
	subs    map[int]func(domain.CourtStatus)
	nextSub int
}

// NewStore returns an empty court store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(domain.CourtStatus))}
}

// Apply replaces the canonical status.
func (s *Store) Apply(status domain.CourtStatus) {
	s.mu.Lock()
	s.state = status
	s.known = true
	s.mu.Unlock()
	s.notify(status)
}

// State returns the canonical status and whether one has been received yet.
func (s *Store) State() (domain.CourtStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.known
}

// Subscribe registers fn to run after every status change.
func (s *Store) Subscribe(fn func(domain.CourtStatus)) (unsubscribe func()) {
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

func (s *Store) notify(status domain.CourtStatus) {
	s.subMu.Lock()
	fns := make([]func(domain.CourtStatus), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}
