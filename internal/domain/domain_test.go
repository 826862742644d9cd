package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJoinQueue(t *testing.T) {
	tests := []struct {
		name    string
		team    string
		members int
		contact string
		wantErr bool
	}{
		{"valid", "Alpha", 3, "alpha@example.com", false},
		{"trims whitespace", "  Alpha  ", 3, "", false},
		{"empty name", "", 3, "", true},
		{"blank name", "   ", 3, "", true},
		{"name too long", strings.Repeat("a", MaxTeamNameLen+1), 3, "", true},
		{"name at limit", strings.Repeat("a", MaxTeamNameLen), 3, "", false},
		{"zero members", "Alpha", 0, "", true},
		{"too many members", "Alpha", MaxTeamMembers + 1, "", true},
		{"members at limit", "Alpha", MaxTeamMembers, "", false},
		{"contact too long", "Alpha", 3, strings.Repeat("x", MaxContactInfoLen+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJoinQueue(tt.team, tt.members, tt.contact)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatchWinner(t *testing.T) {
	m := Match{
		Team1:  Team{ID: "t1", Name: "Alpha"},
		Team2:  Team{ID: "t2", Name: "Beta"},
		Score1: 21,
		Score2: 18,
	}

	w, ok := m.Winner()
	require.True(t, ok)
	assert.Equal(t, "Alpha", w.Name)
	assert.Equal(t, "Alpha", m.WinnerName())
	assert.Equal(t, "21-18", m.FinalScore())

	m.Score1, m.Score2 = 10, 21
	w, ok = m.Winner()
	require.True(t, ok)
	assert.Equal(t, "Beta", w.Name)

	m.Score1, m.Score2 = 15, 15
	_, ok = m.Winner()
	assert.False(t, ok)
	assert.Equal(t, "Tie", m.WinnerName())
	assert.Equal(t, "15-15", m.FinalScore())
}

func TestConfirmationsBoth(t *testing.T) {
	assert.False(t, Confirmations{}.Both())
	assert.False(t, Confirmations{Team1: true}.Both())
	assert.False(t, Confirmations{Team2: true}.Both())
	assert.True(t, Confirmations{Team1: true, Team2: true}.Both())
}

func TestQueueStateCloneIsDeep(t *testing.T) {
	original := QueueState{
		Teams: []Team{{ID: "t1", Name: "Alpha", Status: TeamStatusWaiting, Position: 1}},
	}

	clone := original.Clone()
	clone.Teams[0].Name = "Mutated"

	assert.Equal(t, "Alpha", original.Teams[0].Name)
}
