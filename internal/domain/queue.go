package domain

import "time"

// QueueState is the canonical ordered view of teams waiting for the court.
// It is owned exclusively by the queue store; everything else reads copies.
type QueueState struct {
	Teams          []Team    `json:"teams"`
	TotalTeams     int       `json:"totalTeams"`
	AvailableSlots int       `json:"availableSlots"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Clone returns a deep copy so callers can never alias the canonical slice.
func (q QueueState) Clone() QueueState {
	out := q
	out.Teams = make([]Team, len(q.Teams))
	copy(out.Teams, q.Teams)
	return out
}

// Waiting returns the teams with waiting status, in queue order. Derived
// views are computed on read, never stored.
func (q QueueState) Waiting() []Team {
	return q.withStatus(TeamStatusWaiting)
}

// Playing returns the teams currently on court.
func (q QueueState) Playing() []Team {
	return q.withStatus(TeamStatusPlaying)
}

// Cooldown returns the teams sitting out after a champion-return loss.
func (q QueueState) Cooldown() []Team {
	return q.withStatus(TeamStatusCooldown)
}

func (q QueueState) withStatus(status TeamStatus) []Team {
	var out []Team
	for _, t := range q.Teams {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
