package match

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
)

type fakeTimers struct {
	mu        sync.Mutex
	armed     []string
	cancelled []string
}

func (f *fakeTimers) Arm(m domain.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = append(f.armed, m.ID)
}

func (f *fakeTimers) Cancel(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, matchID)
}

func (f *fakeTimers) armedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func newTestStore(t *testing.T) (*Store, *fakeTimers) {
	t.Helper()
	timers := &fakeTimers{}
	return NewStore(clockwork.NewFakeClock(), timers), timers
}

func delta(event events.MatchEventType, m domain.Match) events.MatchUpdatedPayload {
	return events.MatchUpdatedPayload{Event: event, Match: m}
}

func activeMatch(id string) domain.Match {
	return domain.Match{
		ID:          id,
		Team1:       domain.Team{ID: "t1", Name: "Alpha"},
		Team2:       domain.Team{ID: "t2", Name: "Beta"},
		Status:      domain.MatchStatusActive,
		TargetScore: 21,
		MatchType:   domain.MatchTypeRegular,
	}
}

func TestStore_FullLifecycle(t *testing.T) {
	s, timers := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))

	m, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, domain.MatchStatusActive, m.Status)
	assert.Equal(t, 0, m.Score1)

	scored := activeMatch("m1")
	scored.Score1, scored.Score2 = 21, 18
	s.Apply(delta(events.ScoreUpdated, scored))

	m, _ = s.Current()
	assert.Equal(t, 21, m.Score1)
	assert.Equal(t, 18, m.Score2)
	assert.Equal(t, domain.MatchStatusActive, m.Status)

	s.Apply(delta(events.MatchEnded, scored))

	m, _ = s.Current()
	assert.Equal(t, domain.MatchStatusConfirming, m.Status)
	assert.Equal(t, domain.Confirmations{}, m.Confirmed)
	assert.Equal(t, 1, timers.armedCount(), "countdown armed on match_ended")

	confirmed := scored
	confirmed.Confirmed = domain.Confirmations{Team1: true}
	s.Apply(delta(events.ConfirmationReceived, confirmed))

	m, _ = s.Current()
	assert.True(t, m.Confirmed.Team1)
	assert.False(t, m.Confirmed.Team2)

	done := scored
	done.Confirmed = domain.Confirmations{Team1: true, Team2: true}
	s.Apply(delta(events.MatchCompleted, done))

	m, _ = s.Current()
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
	assert.True(t, m.Confirmed.Both())
	require.NotNil(t, m.EndTime)
	assert.Equal(t, "Alpha", m.WinnerName())
	assert.Equal(t, "21-18", m.FinalScore())
	assert.Contains(t, timers.cancelled, "m1")
}

func TestStore_MonotoneConfirmation(t *testing.T) {
	s, _ := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	withTeam1 := activeMatch("m1")
	withTeam1.Confirmed = domain.Confirmations{Team1: true}
	s.Apply(delta(events.ConfirmationUpdated, withTeam1))

	// A stale event claiming team1 never confirmed must not unset the flag.
	stale := activeMatch("m1")
	stale.Confirmed = domain.Confirmations{Team1: false, Team2: true}
	s.Apply(delta(events.ConfirmationUpdated, stale))

	m, _ := s.Current()
	assert.True(t, m.Confirmed.Team1, "confirmation is monotone within an episode")
	assert.True(t, m.Confirmed.Team2)
}

func TestStore_PostTerminalEventsAreNoOps(t *testing.T) {
	s, _ := newTestStore(t)

	done := activeMatch("m1")
	done.Score1 = 21
	s.Apply(delta(events.MatchStarted, done))
	s.Apply(delta(events.MatchEnded, done))
	s.Apply(delta(events.MatchForceResolved, done))

	m, _ := s.Current()
	require.Equal(t, domain.MatchStatusCompleted, m.Status)

	// The server is not guaranteed to never emit stale events after
	// completion; they must all be no-ops.
	lateConfirm := activeMatch("m1")
	lateConfirm.Confirmed = domain.Confirmations{Team1: true}
	s.Apply(delta(events.ConfirmationUpdated, lateConfirm))
	s.Apply(delta(events.ScoreUpdated, lateConfirm))
	s.Apply(delta(events.MatchEnded, lateConfirm))

	m, _ = s.Current()
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
	assert.Equal(t, 21, m.Score1)
}

func TestStore_DifferentIDReplacesWholesale(t *testing.T) {
	s, timers := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	// Any delta for another id supersedes the view as a fresh start.
	s.Apply(delta(events.ScoreUpdated, activeMatch("m2")))

	m, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "m2", m.ID)
	assert.Equal(t, domain.MatchStatusActive, m.Status)
	assert.Contains(t, timers.cancelled, "m1")
}

func TestStore_ReEnteringConfirmingRestartsEpisode(t *testing.T) {
	s, timers := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	confirmed := activeMatch("m1")
	confirmed.Confirmed = domain.Confirmations{Team1: true}
	s.Apply(delta(events.ConfirmationReceived, confirmed))

	// Admin correction re-enters confirmation: flags reset, timer restarts.
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	m, _ := s.Current()
	assert.Equal(t, domain.MatchStatusConfirming, m.Status)
	assert.Equal(t, domain.Confirmations{}, m.Confirmed)
	assert.Equal(t, 2, timers.armedCount())
}

func TestStore_ScoreUpdateRequiresActive(t *testing.T) {
	s, _ := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	scored := activeMatch("m1")
	scored.Score1 = 5
	s.Apply(delta(events.ScoreUpdated, scored))

	m, _ := s.Current()
	assert.Equal(t, 0, m.Score1, "score updates are dropped while confirming")
}

func TestStore_TieHasNoWinner(t *testing.T) {
	s, _ := newTestStore(t)

	tied := activeMatch("m1")
	tied.Score1, tied.Score2 = 15, 15
	s.Apply(delta(events.MatchStarted, tied))
	s.Apply(delta(events.MatchEnded, tied))
	s.Apply(delta(events.MatchForceResolved, tied))

	m, _ := s.Current()
	_, ok := m.Winner()
	assert.False(t, ok)
	assert.Equal(t, "Tie", m.WinnerName())
}

func TestStore_ReplaceInstallsSnapshot(t *testing.T) {
	s, timers := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))

	snap := activeMatch("m9")
	snap.Status = domain.MatchStatusConfirming
	s.Replace(&snap)

	m, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "m9", m.ID)
	assert.Equal(t, domain.MatchStatusConfirming, m.Status)
	assert.Contains(t, timers.armed, "m9", "a confirming snapshot re-arms a fresh countdown")

	s.Replace(nil)
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestStore_MarkConfirmedOptimistic(t *testing.T) {
	s, _ := newTestStore(t)

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))

	s.MarkConfirmed("m1", "t1")
	m, _ := s.Current()
	assert.True(t, m.Confirmed.Team1)

	// Wrong id or wrong phase is ignored.
	s.MarkConfirmed("m2", "t2")
	m, _ = s.Current()
	assert.False(t, m.Confirmed.Team2)
}

func TestStore_CompletedCallbackFiresOnce(t *testing.T) {
	s, _ := newTestStore(t)

	var completed []string
	s.OnCompleted(func(m domain.Match) { completed = append(completed, m.ID) })

	s.Apply(delta(events.MatchStarted, activeMatch("m1")))
	s.Apply(delta(events.MatchEnded, activeMatch("m1")))
	s.Apply(delta(events.MatchCompleted, activeMatch("m1")))
	s.Apply(delta(events.MatchCompleted, activeMatch("m1")))

	assert.Equal(t, []string{"m1"}, completed)
}
