package queue

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
)

func waiting(id, name string, pos int) domain.Team {
	return domain.Team{ID: id, Name: name, Status: domain.TeamStatusWaiting, Position: pos}
}

func TestStore_ApplyIsIdempotent(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	delta := events.QueueUpdatedPayload{
		Teams: []domain.Team{
			waiting("t2", "Beta", 2),
			waiting("t1", "Alpha", 1),
		},
		TotalTeams:     2,
		AvailableSlots: 8,
	}

	s.Apply(delta)
	first := s.State()
	s.Apply(delta)
	second := s.State()

	assert.Equal(t, first, second, "replaying the same delta must not change state")
}

func TestStore_ApplySortsWaitingByPosition(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	playing := domain.Team{ID: "p1", Name: "Gamma", Status: domain.TeamStatusPlaying}
	s.Apply(events.QueueUpdatedPayload{
		Teams: []domain.Team{
			waiting("t3", "Charlie", 3),
			playing,
			waiting("t1", "Alpha", 1),
			waiting("t2", "Beta", 2),
		},
		TotalTeams:     4,
		AvailableSlots: 6,
	})

	state := s.State()
	require.Len(t, state.Teams, 4)
	assert.Equal(t, "t1", state.Teams[0].ID)
	assert.Equal(t, "t2", state.Teams[1].ID)
	assert.Equal(t, "t3", state.Teams[2].ID)
	assert.Equal(t, "p1", state.Teams[3].ID, "non-waiting teams sort after the queue")

	positions := make([]int, 0, 3)
	for _, team := range state.Waiting() {
		positions = append(positions, team.Position)
	}
	assert.Equal(t, []int{1, 2, 3}, positions, "waiting positions stay dense")
}

func TestStore_DerivedViews(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	s.Apply(events.QueueUpdatedPayload{
		Teams: []domain.Team{
			waiting("t1", "Alpha", 1),
			{ID: "p1", Name: "Gamma", Status: domain.TeamStatusPlaying},
			{ID: "c1", Name: "Delta", Status: domain.TeamStatusCooldown},
		},
		TotalTeams:     3,
		AvailableSlots: 7,
	})

	state := s.State()
	assert.Len(t, state.Waiting(), 1)
	assert.Len(t, state.Playing(), 1)
	assert.Len(t, state.Cooldown(), 1)
}

func TestStore_ReplaceAndStateAreIsolated(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	snapshot := domain.QueueState{
		Teams:          []domain.Team{waiting("t1", "Alpha", 1)},
		TotalTeams:     1,
		AvailableSlots: 9,
	}
	s.Replace(snapshot)

	// Mutating the caller's slice must not leak into the store.
	snapshot.Teams[0].Name = "Mutated"
	assert.Equal(t, "Alpha", s.State().Teams[0].Name)

	got := s.State()
	got.Teams[0].Name = "AlsoMutated"
	assert.Equal(t, "Alpha", s.State().Teams[0].Name)
}

func TestStore_SubscribeNotifiesOnEveryChange(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	var seen []int
	unsubscribe := s.Subscribe(func(state domain.QueueState) {
		seen = append(seen, state.TotalTeams)
	})

	s.Apply(events.QueueUpdatedPayload{Teams: []domain.Team{}, TotalTeams: 0, AvailableSlots: 10})
	s.Replace(domain.QueueState{Teams: []domain.Team{waiting("t1", "Alpha", 1)}, TotalTeams: 1})
	unsubscribe()
	s.Apply(events.QueueUpdatedPayload{Teams: []domain.Team{}, TotalTeams: 5})

	assert.Equal(t, []int{0, 1}, seen)
}
