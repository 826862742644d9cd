package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/courtside/courtside/internal/domain"
)

// Topic is the discriminator carried by every push-channel message. The set
// is closed; anything else is malformed.
type Topic string

const (
	TopicQueueUpdated Topic = "queue-updated"
	TopicMatchUpdated Topic = "match-updated"
	TopicCourtStatus  Topic = "court-status"
	TopicNotification Topic = "notification"
	TopicError        Topic = "error"
)

// Intent topics emitted by this client.
const (
	TopicJoinRoom      Topic = "join-room"
	TopicJoinQueue     Topic = "join-queue"
	TopicConfirmResult Topic = "confirm-result"
	TopicAdminAction   Topic = "admin-action"
)

// ErrMalformed marks messages rejected before dispatch: unknown or missing
// topic, or a payload that does not satisfy its schema.
var ErrMalformed = errors.New("malformed event")

// Envelope is the wire framing for both directions on the push channel.
type Envelope struct {
	Topic Topic           `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// MatchEventType is the event discriminator inside a match-updated payload.
type MatchEventType string

const (
	MatchStarted         MatchEventType = "match_started"
	ScoreUpdated         MatchEventType = "score_updated"
	MatchEnded           MatchEventType = "match_ended"
	MatchCompleted       MatchEventType = "match_completed"
	ConfirmationReceived MatchEventType = "confirmation_received"
	ConfirmationUpdated  MatchEventType = "confirmation_updated"
	MatchTimeoutResolved MatchEventType = "match_timeout_resolved"
	MatchForceResolved   MatchEventType = "match_force_resolved"
	MatchUpdatedByAdmin  MatchEventType = "match_updated_by_admin"
)

func knownMatchEvent(e MatchEventType) bool {
	switch e {
	case MatchStarted, ScoreUpdated, MatchEnded, MatchCompleted,
		ConfirmationReceived, ConfirmationUpdated,
		MatchTimeoutResolved, MatchForceResolved, MatchUpdatedByAdmin:
		return true
	}
	return false
}

// QueueUpdatedPayload carries the full replacement queue for the affected
// scope. The server resends everything; deltas are never field-level patches.
type QueueUpdatedPayload struct {
	Teams          []domain.Team `json:"teams"`
	TotalTeams     int           `json:"totalTeams"`
	AvailableSlots int           `json:"availableSlots"`
	Event          string        `json:"event,omitempty"`
}

// Score carries an explicit score pair on score_updated events.
type Score struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

// MatchUpdatedPayload carries one match lifecycle event.
type MatchUpdatedPayload struct {
	Event      MatchEventType `json:"event"`
	Match      domain.Match   `json:"match"`
	Score      *Score         `json:"score,omitempty"`
	Winner     *domain.Team   `json:"winner,omitempty"`
	FinalScore string         `json:"finalScore,omitempty"`
}

// NotificationPayload is forwarded verbatim to the toast sink.
type NotificationPayload struct {
	Type     string `json:"type"` // info | success | warning | error
	Title    string `json:"title"`
	Message  string `json:"message"`
	Duration int    `json:"duration,omitempty"` // milliseconds
}

// ErrorPayload is the server's error topic. Codes follow the shared taxonomy.
type ErrorPayload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Server error codes.
const (
	CodeTeamNameExists    = "TEAM_NAME_EXISTS"
	CodeQueueFull         = "QUEUE_FULL"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeMalformedEvent    = "MALFORMED_EVENT"
)

// ParsePayload narrows an envelope's raw data to the typed payload for its
// topic. Unknown topics and schema violations return ErrMalformed.
func ParsePayload(topic Topic, data json.RawMessage) (any, error) {
	switch topic {
	case TopicQueueUpdated:
		var p QueueUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: queue-updated: %v", ErrMalformed, err)
		}
		if p.Teams == nil {
			return nil, fmt.Errorf("%w: queue-updated: missing teams", ErrMalformed)
		}
		return p, nil

	case TopicMatchUpdated:
		var p MatchUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: match-updated: %v", ErrMalformed, err)
		}
		if !knownMatchEvent(p.Event) {
			return nil, fmt.Errorf("%w: match-updated: unknown event %q", ErrMalformed, p.Event)
		}
		if p.Match.ID == "" {
			return nil, fmt.Errorf("%w: match-updated: missing match id", ErrMalformed)
		}
		return p, nil

	case TopicCourtStatus:
		var p domain.CourtStatus
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: court-status: %v", ErrMalformed, err)
		}
		return p, nil

	case TopicNotification:
		var p NotificationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: notification: %v", ErrMalformed, err)
		}
		if p.Message == "" && p.Title == "" {
			return nil, fmt.Errorf("%w: notification: empty", ErrMalformed)
		}
		return p, nil

	case TopicError:
		var p ErrorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: error: %v", ErrMalformed, err)
		}
		if p.Code == "" {
			return nil, fmt.Errorf("%w: error: missing code", ErrMalformed)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: unknown topic %q", ErrMalformed, topic)
	}
}
