package viewer

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/courtside/courtside/internal/court"
	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
	"github.com/courtside/courtside/internal/history"
	"github.com/courtside/courtside/internal/match"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/queue"
)

// Countdown exposes the confirmation display counter to the API.
type Countdown interface {
	Remaining() (matchID string, seconds int, running bool)
}

// Connection exposes the push channel's state to the API.
type Connection interface {
	State() domain.ConnectionState
}

// Server is the local read surface for the three viewers: REST snapshots of
// the reconciled state plus a websocket fanout of updates. It only ever
// reads canonical state; intents go through the app service.
type Server struct {
	queue     *queue.Store
	match     *match.Store
	court     *court.Store
	countdown Countdown
	conn      Connection
	history   *history.Store // may be nil
	fanout    *Fanout
}

// NewServer wires the read surface. history may be nil when journaling is
// disabled.
func NewServer(q *queue.Store, m *match.Store, c *court.Store, cd Countdown, conn Connection, h *history.Store, fanout *Fanout) *Server {
	return &Server{queue: q, match: m, court: c, countdown: cd, conn: conn, history: h, fanout: fanout}
}

// Bind subscribes the fanout to every store so reconciled updates reach the
// viewers, and registers a toast sink on the dispatcher.
func (s *Server) Bind(dispatcher *notify.Dispatcher) {
	s.queue.Subscribe(func(state domain.QueueState) {
		s.fanout.Broadcast(events.TopicQueueUpdated, state)
	})
	s.match.Subscribe(func(m domain.Match) {
		s.fanout.Broadcast(events.TopicMatchUpdated, m)
	})
	s.court.Subscribe(func(cs domain.CourtStatus) {
		s.fanout.Broadcast(events.TopicCourtStatus, cs)
	})
	dispatcher.Register(notify.SinkFunc(func(t notify.Toast) {
		s.fanout.Broadcast(events.TopicNotification, t)
	}))
}

// Handler returns the complete HTTP handler: mux, CORS, h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/queue", s.handleQueue)
	mux.HandleFunc("/api/match", s.handleMatch)
	mux.HandleFunc("/api/court", s.handleCourt)
	mux.HandleFunc("/api/connection", s.handleConnection)
	mux.HandleFunc("/api/history/matches", s.handleHistory)
	mux.HandleFunc("/ws", s.fanout.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	state := s.queue.State()
	writeJSON(w, map[string]any{
		"teams":          state.Teams,
		"totalTeams":     state.TotalTeams,
		"availableSlots": state.AvailableSlots,
		"lastUpdated":    state.LastUpdated,
		"waiting":        state.Waiting(),
		"playing":        state.Playing(),
		"cooldown":       state.Cooldown(),
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	m, ok := s.match.Current()
	if !ok {
		writeJSON(w, map[string]any{"match": nil})
		return
	}
	resp := map[string]any{"match": m}
	if id, seconds, running := s.countdown.Remaining(); running && id == m.ID {
		resp["confirmTimeRemainingSec"] = seconds
	}
	writeJSON(w, resp)
}

func (s *Server) handleCourt(w http.ResponseWriter, r *http.Request) {
	status, known := s.court.State()
	if !known {
		writeJSON(w, map[string]any{"status": nil})
		return
	}
	writeJSON(w, map[string]any{"status": status})
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.conn.State())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	records, err := s.history.RecentMatches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read match history")
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"matches": records})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
