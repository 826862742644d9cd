package domain

import "time"

// CourtMode is the court's operating mode.
type CourtMode string

const (
	CourtModeRegular        CourtMode = "regular"
	CourtModeChampionReturn CourtMode = "champion-return"
)

// CourtStatus mirrors the server's court-status topic payload.
type CourtStatus struct {
	IsOpen        bool       `json:"isOpen"`
	CurrentTime   time.Time  `json:"currentTime"`
	Timezone      string     `json:"timezone"`
	Mode          CourtMode  `json:"mode"`
	CooldownEnd   *time.Time `json:"cooldownEnd,omitempty"`
	ActiveMatches int        `json:"activeMatches"`
}
