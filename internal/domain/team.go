package domain

import "time"

// TeamStatus represents where a team currently is in the court rotation.
type TeamStatus string

const (
	TeamStatusWaiting  TeamStatus = "waiting"
	TeamStatusPlaying  TeamStatus = "playing"
	TeamStatusCooldown TeamStatus = "cooldown"
)

// Team represents a registered team as pushed by the server.
type Team struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Members     int        `json:"members"`
	ContactInfo string     `json:"contactInfo,omitempty"`
	Status      TeamStatus `json:"status"`
	Wins        int        `json:"wins"`
	LastSeen    time.Time  `json:"lastSeen"`
	// Position is 1-based and only meaningful while Status is waiting.
	Position int `json:"position,omitempty"`
}

// Validation limits for join-queue input.
const (
	MaxTeamNameLen    = 50
	MaxTeamMembers    = 10
	MaxContactInfoLen = 100
)
