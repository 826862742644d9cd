package router

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/events"
)

// Handler receives the typed payload for a topic. Handlers run synchronously
// in arrival order; the router never buffers or reorders.
type Handler func(payload any)

// Router demultiplexes inbound channel messages into the five topics and
// narrows each payload before dispatch. A failing handler is isolated: its
// panic is recovered and logged so the remaining handlers still run and the
// receive loop never breaks.
type Router struct {
	mu       sync.RWMutex
	handlers map[events.Topic][]Handler

	malformed atomic.Uint64
	delivered atomic.Uint64
}

// New returns an empty router.
func New() *Router {
	return &Router{
		handlers: make(map[events.Topic][]Handler),
	}
}

// Subscribe registers a handler for a topic. Registration order is dispatch
// order.
func (r *Router) Subscribe(topic events.Topic, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = append(r.handlers[topic], h)
}

// Route validates and dispatches one raw message. Malformed messages are
// logged and dropped; Route never returns an error and never blocks beyond
// its handlers.
func (r *Router) Route(raw []byte) {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Topic == "" {
		r.malformed.Add(1)
		log.Warn().
			Str("code", events.CodeMalformedEvent).
			Err(err).
			Msg("dropping message without topic discriminator")
		return
	}

	payload, err := events.ParsePayload(env.Topic, env.Data)
	if err != nil {
		r.malformed.Add(1)
		log.Warn().
			Str("code", events.CodeMalformedEvent).
			Str("topic", string(env.Topic)).
			Err(err).
			Msg("dropping malformed payload")
		return
	}

	r.mu.RLock()
	handlers := r.handlers[env.Topic]
	r.mu.RUnlock()

	for _, h := range handlers {
		r.dispatch(env.Topic, h, payload)
	}
	r.delivered.Add(1)
}

func (r *Router) dispatch(topic events.Topic, h Handler, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("topic", string(topic)).
				Interface("panic", rec).
				Msg("handler panicked; continuing delivery")
		}
	}()
	h(payload)
}

// MalformedCount reports how many messages were rejected before dispatch.
func (r *Router) MalformedCount() uint64 {
	return r.malformed.Load()
}

// DeliveredCount reports how many messages reached their handlers.
func (r *Router) DeliveredCount() uint64 {
	return r.delivered.Load()
}
