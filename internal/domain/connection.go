package domain

import "time"

// ConnectionState describes the push channel's health. It is created at
// process start, mutated only by the channel, and never destroyed.
type ConnectionState struct {
	IsConnected       bool      `json:"isConnected"`
	ConnectionError   string    `json:"connectionError,omitempty"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	LastConnected     time.Time `json:"lastConnected,omitempty"`
}
