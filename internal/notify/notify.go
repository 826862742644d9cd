package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/events"
)

// Level mirrors the server's notification types.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is one user-visible notification.
type Toast struct {
	Type     Level         `json:"type"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Sink consumes toasts. The viewer fanout registers one to push toasts to
// connected displays; tests register capture sinks.
type Sink interface {
	Notify(t Toast)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(t Toast)

func (f SinkFunc) Notify(t Toast) { f(t) }

// Dispatcher is the single notification path. Every externally-surfaced
// failure and every server notification passes through here exactly once, so
// nothing is silently swallowed and nothing is duplicated across components.
type Dispatcher struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewDispatcher returns a dispatcher that always logs, plus whatever sinks
// are registered later.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a sink.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// Notify delivers a toast to every sink.
func (d *Dispatcher) Notify(t Toast) {
	log.Info().
		Str("level", string(t.Type)).
		Str("title", t.Title).
		Str("message", t.Message).
		Msg("notification")

	d.mu.Lock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.Unlock()
	for _, s := range sinks {
		s.Notify(t)
	}
}

// Forward converts a server notification payload verbatim.
func (d *Dispatcher) Forward(p events.NotificationPayload) {
	d.Notify(Toast{
		Type:     Level(p.Type),
		Title:    p.Title,
		Message:  p.Message,
		Duration: time.Duration(p.Duration) * time.Millisecond,
	})
}

// Error is shorthand for an error-level toast.
func (d *Dispatcher) Error(title, message string) {
	d.Notify(Toast{Type: LevelError, Title: title, Message: message})
}

// Warning is shorthand for a warning-level toast.
func (d *Dispatcher) Warning(title, message string) {
	d.Notify(Toast{Type: LevelWarning, Title: title, Message: message})
}
