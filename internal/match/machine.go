package match

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
)

// Timers is the confirmation countdown owned per match in confirming state.
// Arm restarts any running countdown for the same match id rather than
// stacking a second one; Cancel stops ticking without firing.
type Timers interface {
	Arm(m domain.Match)
	Cancel(matchID string)
}

// nopTimers lets the store run without a countdown (tests, read-only views).
type nopTimers struct{}

func (nopTimers) Arm(domain.Match) {}
func (nopTimers) Cancel(string) {}

// Store folds match-updated events into the canonical Match for the court's
// currently displayed match and drives the confirmation sub-protocol.
//
// Status only moves forward: active -> confirming -> completed, or straight
// to completed when force-resolved. The single exception is a delta for a
// different match id, which replaces the view wholesale as a fresh
// match_started. Events for a completed match id are no-ops; the server is
// not trusted to never emit them.
type Store struct {
	clock  clockwork.Clock
	timers Timers

	mu      sync.RWMutex
	current *domain.Match

	subMu   sync.Mutex
	subs    map[int]func(domain.Match)
	nextSub int

	completedMu sync.Mutex
	completed   []func(domain.Match)
}

// NewStore returns an empty match store. timers may be nil.
func NewStore(clock clockwork.Clock, timers Timers) *Store {
	if timers == nil {
		timers = nopTimers{}
	}
	return &Store{
		clock:  clock,
		timers: timers,
		subs:   make(map[int]func(domain.Match)),
	}
}

// SetTimers installs the countdown controller after construction. The store
// and controller reference each other, so one side has to be wired late.
func (s *Store) SetTimers(t Timers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = t
}

// Current returns a copy of the displayed match, if any.
func (s *Store) Current() (domain.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Match{}, false
	}
	return *s.current, true
}

// Apply folds one match-updated event into canonical state. It is total for
// well-formed input: events that fail their precondition are dropped, never
// errors.
func (s *Store) Apply(p events.MatchUpdatedPayload) {
	s.mu.Lock()

	// A delta for a different match id supersedes the view wholesale and is
	// treated as match_started for the new id.
	if s.current != nil && s.current.ID != p.Match.ID {
		log.Info().
			Str("old_match_id", s.current.ID).
			Str("match_id", p.Match.ID).
			Str("event", string(p.Event)).
			Msg("match id changed; replacing view")
		s.timers.Cancel(s.current.ID)
		s.startFresh(p.Match)
		s.unlockAndNotify()
		return
	}

	switch p.Event {
	case events.MatchStarted, events.MatchUpdatedByAdmin:
		if s.current != nil {
			s.timers.Cancel(s.current.ID)
		}
		s.startFresh(p.Match)

	case events.ScoreUpdated:
		if s.current == nil || s.current.Status != domain.MatchStatusActive {
			s.dropLocked(p)
			break
		}
		if p.Score != nil {
			s.current.Score1, s.current.Score2 = p.Score.Score1, p.Score.Score2
		} else {
			s.current.Score1, s.current.Score2 = p.Match.Score1, p.Match.Score2
		}

	case events.MatchEnded:
		// Accepted from active, and again from confirming when the server
		// re-enters confirmation (admin correction). Either way the episode
		// starts fresh: flags reset and the countdown restarts from full.
		if s.current == nil || s.current.Status == domain.MatchStatusCompleted {
			s.dropLocked(p)
			break
		}
		s.current.Status = domain.MatchStatusConfirming
		s.current.Confirmed = domain.Confirmations{}
		s.timers.Arm(*s.current)

	case events.ConfirmationReceived, events.ConfirmationUpdated:
		if s.current == nil || s.current.Status != domain.MatchStatusConfirming {
			s.dropLocked(p)
			break
		}
		// Confirmation is monotone within an episode: a stale event can never
		// turn an already-true flag back off.
		s.current.Confirmed.Team1 = s.current.Confirmed.Team1 || p.Match.Confirmed.Team1
		s.current.Confirmed.Team2 = s.current.Confirmed.Team2 || p.Match.Confirmed.Team2

	case events.MatchCompleted, events.MatchTimeoutResolved, events.MatchForceResolved:
		if s.current == nil || s.current.Status == domain.MatchStatusCompleted {
			s.dropLocked(p)
			break
		}
		s.timers.Cancel(s.current.ID)
		s.current.Status = domain.MatchStatusCompleted
		s.current.Confirmed = domain.Confirmations{Team1: true, Team2: true}
		if p.Match.EndTime != nil {
			s.current.EndTime = p.Match.EndTime
		} else {
			now := s.clock.Now()
			s.current.EndTime = &now
		}
		if p.Score != nil {
			s.current.Score1, s.current.Score2 = p.Score.Score1, p.Score.Score2
		}
		done := *s.current
		s.unlockAndNotify()
		s.notifyCompleted(done)
		return

	default:
		s.dropLocked(p)
	}

	s.unlockAndNotify()
}

// Replace installs an authoritative snapshot after a reconnect resync. A nil
// match clears the view. A snapshot already in confirming re-arms a fresh
// countdown; the pre-outage countdown's premise is gone.
func (s *Store) Replace(m *domain.Match) {
	s.mu.Lock()
	if s.current != nil {
		s.timers.Cancel(s.current.ID)
	}
	if m == nil {
		s.current = nil
		s.mu.Unlock()
		return
	}
	cp := *m
	s.current = &cp
	if cp.Status == domain.MatchStatusConfirming {
		s.timers.Arm(cp)
	}
	s.unlockAndNotify()
}

// MarkConfirmed sets one side's confirmation flag locally (optimistic manual
// confirm). Only valid while confirming.
func (s *Store) MarkConfirmed(matchID, teamID string) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != matchID || s.current.Status != domain.MatchStatusConfirming {
		s.mu.Unlock()
		return
	}
	switch teamID {
	case s.current.Team1.ID:
		s.current.Confirmed.Team1 = true
	case s.current.Team2.ID:
		s.current.Confirmed.Team2 = true
	}
	s.unlockAndNotify()
}

// Subscribe registers fn to run after every visible state change.
func (s *Store) Subscribe(fn func(domain.Match)) (unsubscribe func()) {
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

// OnCompleted registers fn to run once per match reaching completed.
func (s *Store) OnCompleted(fn func(domain.Match)) {
	s.completedMu.Lock()
	s.completed = append(s.completed, fn)
	s.completedMu.Unlock()
}

// startFresh replaces the canonical match. Status is forced to active; a new
// id always begins a fresh lifecycle regardless of what the payload claims.
func (s *Store) startFresh(m domain.Match) {
	cp := m
	cp.Status = domain.MatchStatusActive
	cp.EndTime = nil
	if cp.StartTime.IsZero() {
		cp.StartTime = s.clock.Now()
	}
	s.current = &cp
	s.timers.Cancel(cp.ID)
}

func (s *Store) dropLocked(p events.MatchUpdatedPayload) {
	status := "none"
	if s.current != nil {
		status = string(s.current.Status)
	}
	log.Debug().
		Str("event", string(p.Event)).
		Str("match_id", p.Match.ID).
		Str("status", status).
		Msg("dropping match event that fails its precondition")
}

// unlockAndNotify snapshots current, releases the lock, then notifies.
func (s *Store) unlockAndNotify() {
	var snap domain.Match
	ok := s.current != nil
	if ok {
		snap = *s.current
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.subMu.Lock()
	fns := make([]func(domain.Match), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) notifyCompleted(m domain.Match) {
	s.completedMu.Lock()
	fns := make([]func(domain.Match), len(s.completed))
	copy(fns, s.completed)
	s.completedMu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
}
