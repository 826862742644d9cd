package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/events"
)

// FanoutConfig holds viewer websocket settings.
type FanoutConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
	CheckOrigin  func(r *http.Request) bool
}

// DefaultFanoutConfig returns settings suitable for local viewers.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   256,
		CheckOrigin:  func(*http.Request) bool { return true },
	}
}

// Fanout re-broadcasts reconciled store updates to the attached viewers
// (queue display, match viewer, admin console). Viewers are read-only: any
// frame they send is logged and ignored.
type Fanout struct {
	cfg      FanoutConfig
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*viewerConn]bool

	broadcastCh chan []byte
}

type viewerConn struct {
	id   string
	sock *websocket.Conn
	send chan []byte
}

// NewFanout returns an empty fanout. Start must be called to drain the
// broadcast queue.
func NewFanout(cfg FanoutConfig) *Fanout {
	return &Fanout{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		conns:       make(map[*viewerConn]bool),
		broadcastCh: make(chan []byte, 1024),
	}
}

// Start drains the broadcast queue until ctx is cancelled.
func (f *Fanout) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return
		case msg := <-f.broadcastCh:
			f.deliver(msg)
		}
	}
}

// Broadcast queues one update for every attached viewer. Drops the update
// when the queue is full rather than blocking a reducer.
func (f *Fanout) Broadcast(topic events.Topic, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("topic", string(topic)).Msg("failed to marshal viewer update")
		return
	}
	msg, err := json.Marshal(events.Envelope{Topic: topic, Data: data})
	if err != nil {
		log.Error().Err(err).Str("topic", string(topic)).Msg("failed to marshal viewer envelope")
		return
	}
	select {
	case f.broadcastCh <- msg:
	default:
		log.Warn().Str("topic", string(topic)).Msg("viewer broadcast queue full, dropping update")
	}
}

// HandleWS upgrades a viewer connection.
func (f *Fanout) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade viewer connection")
		return
	}

	vc := &viewerConn{
		id:   uuid.New().String(),
		sock: sock,
		send: make(chan []byte, f.cfg.SendBuffer),
	}

	f.mu.Lock()
	f.conns[vc] = true
	f.mu.Unlock()

	log.Info().Str("connection_id", vc.id).Msg("viewer connected")

	go f.writePump(vc)
	go f.readPump(vc)
}

// ViewerCount reports how many viewers are attached.
func (f *Fanout) ViewerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.conns)
}

func (f *Fanout) deliver(msg []byte) {
	f.mu.RLock()
	targets := make([]*viewerConn, 0, len(f.conns))
	for vc := range f.conns {
		targets = append(targets, vc)
	}
	f.mu.RUnlock()

	for _, vc := range targets {
		select {
		case vc.send <- msg:
		default:
			log.Warn().Str("connection_id", vc.id).Msg("viewer send buffer full, dropping connection")
			f.drop(vc)
		}
	}
}

func (f *Fanout) drop(vc *viewerConn) {
	f.mu.Lock()
	if _, ok := f.conns[vc]; ok {
		delete(f.conns, vc)
		close(vc.send)
	}
	f.mu.Unlock()
	vc.sock.Close()
}

func (f *Fanout) closeAll() {
	f.mu.Lock()
	conns := make([]*viewerConn, 0, len(f.conns))
	for vc := range f.conns {
		conns = append(conns, vc)
	}
	f.conns = make(map[*viewerConn]bool)
	f.mu.Unlock()
	for _, vc := range conns {
		close(vc.send)
		vc.sock.Close()
	}
}

func (f *Fanout) writePump(vc *viewerConn) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		vc.sock.Close()
	}()

	for {
		select {
		case msg, ok := <-vc.send:
			vc.sock.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
			if !ok {
				vc.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := vc.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				f.drop(vc)
				return
			}
		case <-ticker.C:
			vc.sock.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
			if err := vc.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.drop(vc)
				return
			}
		}
	}
}

func (f *Fanout) readPump(vc *viewerConn) {
	defer f.drop(vc)
	vc.sock.SetReadLimit(1024)
	for {
		_, message, err := vc.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", vc.id).Msg("unexpected viewer close")
			}
			return
		}
		log.Debug().Str("connection_id", vc.id).RawJSON("message", message).Msg("ignoring viewer message")
	}
}
