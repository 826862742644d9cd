package domain

import (
	"fmt"
	"time"
)

// MatchStatus is the lifecycle state of a match. Transitions only move
// forward: active -> confirming -> completed, or confirming/active ->
// completed when resolved directly.
type MatchStatus string

const (
	MatchStatusActive     MatchStatus = "active"
	MatchStatusConfirming MatchStatus = "confirming"
	MatchStatusCompleted  MatchStatus = "completed"
)

// MatchType distinguishes normal rotation from champion-return mode where
// the winner stays on court.
type MatchType string

const (
	MatchTypeRegular        MatchType = "regular"
	MatchTypeChampionReturn MatchType = "champion-return"
)

// Confirmations tracks per-side acknowledgment of the final score.
type Confirmations struct {
	Team1 bool `json:"team1"`
	Team2 bool `json:"team2"`
}

// Both reports whether both sides have confirmed.
func (c Confirmations) Both() bool {
	return c.Team1 && c.Team2
}

// Match represents one game on the court. Team1 and Team2 are snapshots of
// the teams at match time, not live references into the queue.
type Match struct {
	ID          string        `json:"id"`
	Team1       Team          `json:"team1"`
	Team2       Team          `json:"team2"`
	Score1      int           `json:"score1"`
	Score2      int           `json:"score2"`
	Status      MatchStatus   `json:"status"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
	TargetScore int           `json:"targetScore"`
	MatchType   MatchType     `json:"matchType"`
	Confirmed   Confirmations `json:"confirmed"`
}

// Winner returns the team with the higher score. Equal scores never produce
// a winner; ok is false for a tie.
func (m *Match) Winner() (winner Team, ok bool) {
	switch {
	case m.Score1 > m.Score2:
		return m.Team1, true
	case m.Score2 > m.Score1:
		return m.Team2, true
	default:
		return Team{}, false
	}
}

// WinnerName returns the winning team's name, or "Tie" when scores are equal.
func (m *Match) WinnerName() string {
	if w, ok := m.Winner(); ok {
		return w.Name
	}
	return "Tie"
}

// FinalScore renders the score as "21-18".
func (m *Match) FinalScore() string {
	return fmt.Sprintf("%d-%d", m.Score1, m.Score2)
}
