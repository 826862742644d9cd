package events

// JoinRoomIntent announces room membership. Sent on every (re)connect; the
// server treats it as idempotent.
type JoinRoomIntent struct {
	Room  string `json:"room"`
	Token string `json:"token,omitempty"`
}

// JoinQueueIntent registers a team at the back of the queue.
type JoinQueueIntent struct {
	Name        string `json:"name"`
	Members     int    `json:"members"`
	ContactInfo string `json:"contactInfo,omitempty"`
}

// ConfirmResultIntent acknowledges (or disputes) a final score for one side.
type ConfirmResultIntent struct {
	MatchID   string `json:"matchId"`
	TeamID    string `json:"teamId"`
	Confirmed bool   `json:"confirmed"`
}

// AdminActionIntent carries privileged operations over the push channel.
type AdminActionIntent struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
	AdminID string `json:"adminId"`
}
