package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
)

// ErrNotConnected is returned by Send while the channel is down. Callers
// either fall back to REST or surface a retry affordance; the channel itself
// keeps reconnecting.
var ErrNotConnected = errors.New("channel not connected")

// Config holds the push-channel connection settings.
type Config struct {
	URL   string
	Room  string
	Token string

	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns production connection settings.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		BackoffMin:     time.Second,
		BackoffMax:     30 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     64,
	}
}

// Router receives every raw inbound message in arrival order.
type Router interface {
	Route(raw []byte)
}

// Channel owns the single push-channel connection: it dials, re-dials with
// exponential backoff, re-announces room membership on every connect, and
// feeds inbound messages to the router. It is the only mutator of
// ConnectionState.
type Channel struct {
	cfg    Config
	router Router
	clock  clockwork.Clock

	mu     sync.RWMutex
	conn   *websocket.Conn
	sendCh chan []byte
	state  domain.ConnectionState

	watchMu  sync.Mutex
	watchers []func(connected bool)
}

// New returns an unconnected channel. Run starts it.
func New(cfg Config, router Router, clock clockwork.Clock) *Channel {
	return &Channel{cfg: cfg, router: router, clock: clock}
}

// OnConnectivityChange registers fn for disconnected<->connected edges. The
// callback runs on the channel's goroutine; keep it short.
func (c *Channel) OnConnectivityChange(fn func(connected bool)) {
	c.watchMu.Lock()
	c.watchers = append(c.watchers, fn)
	c.watchMu.Unlock()
}

// IsConnected is the connectivity boolean.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsConnected
}

// State returns a copy of the connection state.
func (c *Channel) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send marshals an intent envelope and queues it for the write pump.
func (c *Channel) Send(topic events.Topic, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	msg, err := json.Marshal(events.Envelope{Topic: topic, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}

	c.mu.RLock()
	sendCh := c.sendCh
	c.mu.RUnlock()
	if sendCh == nil {
		return ErrNotConnected
	}
	select {
	case sendCh <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full for %s: %w", topic, ErrNotConnected)
	}
}

// Run dials and re-dials until ctx is cancelled. Each successful session
// blocks until the connection drops.
func (c *Channel) Run(ctx context.Context) error {
	backoff := c.cfg.BackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.recordFailure(err)
			log.Warn().
				Err(err).
				Dur("retry_in", backoff).
				Int("attempts", c.State().ReconnectAttempts).
				Msg("channel dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.BackoffMax)
			continue
		}

		backoff = c.cfg.BackoffMin
		c.runSession(ctx, conn)
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// runSession owns one live connection from announce to drop.
func (c *Channel) runSession(ctx context.Context, conn *websocket.Conn) {
	sendCh := make(chan []byte, c.cfg.SendBuffer)

	c.mu.Lock()
	c.conn = conn
	c.sendCh = sendCh
	c.state.IsConnected = true
	c.state.ConnectionError = ""
	c.state.LastConnected = c.clock.Now()
	c.mu.Unlock()

	log.Info().Str("url", c.cfg.URL).Str("room", c.cfg.Room).Msg("channel connected")

	// Room membership is announced on every connect; the server treats the
	// announcement as idempotent.
	if err := c.Send(events.TopicJoinRoom, events.JoinRoomIntent{Room: c.cfg.Room, Token: c.cfg.Token}); err != nil {
		log.Error().Err(err).Msg("failed to queue room announcement")
	}

	c.notifyWatchers(true)

	writeDone := make(chan struct{})
	go c.writePump(ctx, conn, sendCh, writeDone)

	readErr := c.readPump(conn)

	conn.Close()
	<-writeDone

	c.mu.Lock()
	c.conn = nil
	c.sendCh = nil
	c.state.IsConnected = false
	// A fresh outage starts counting dial attempts from zero.
	c.state.ReconnectAttempts = 0
	if readErr != nil {
		c.state.ConnectionError = readErr.Error()
	}
	c.mu.Unlock()

	log.Warn().Err(readErr).Msg("channel disconnected")
	c.notifyWatchers(false)
}

// readPump delivers inbound frames to the router until the connection fails.
func (c *Channel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected channel close")
			}
			return err
		}
		c.router.Route(message)
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Channel) writePump(ctx context.Context, conn *websocket.Conn, sendCh chan []byte, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		case msg := <-sendCh:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().Err(err).Msg("channel write failed")
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (c *Channel) recordFailure(err error) {
	c.mu.Lock()
	c.state.ConnectionError = err.Error()
	c.state.ReconnectAttempts++
	c.mu.Unlock()
}

func (c *Channel) notifyWatchers(connected bool) {
	c.watchMu.Lock()
	fns := make([]func(bool), len(c.watchers))
	copy(fns, c.watchers)
	c.watchMu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}
