package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/channel"
	"github.com/courtside/courtside/internal/confirm"
	"github.com/courtside/courtside/internal/court"
	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/events"
	"github.com/courtside/courtside/internal/history"
	"github.com/courtside/courtside/internal/match"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/queue"
	"github.com/courtside/courtside/internal/reorder"
	"github.com/courtside/courtside/internal/resync"
	"github.com/courtside/courtside/internal/rest"
	"github.com/courtside/courtside/internal/router"
)

// ErrAdminSession means an admin write was rejected with 401/403. The local
// admin session is terminated; the caller must re-authenticate. The engine
// itself holds no admin state beyond this flag.
var ErrAdminSession = errors.New("admin session invalid; re-authentication required")

// Service binds every component of the reconciliation engine together: the
// router's topics feed the stores, connectivity edges drive the
// resynchronizer, and the three locally-originated write paths (join,
// confirm, reorder/force-resolve) go out through it.
type Service struct {
	channel  *channel.Channel
	routes   *router.Router
	api      *rest.Client
	queue    *queue.Store
	match    *match.Store
	court    *court.Store
	count    *confirm.Controller
	reorders *reorder.Coordinator
	resyncer *resync.Resynchronizer
	toasts   *notify.Dispatcher
	journal  *history.Store // may be nil
	clock    clockwork.Clock
	adminID  string

	// Push deltas are held off the stores from the moment connectivity drops
	// until resync installs a fresh baseline.
	resyncing atomic.Bool

	adminValid atomic.Bool

	baseCtx      context.Context
	resyncMu     sync.Mutex
	resyncCancel context.CancelFunc

	outageMu sync.Mutex
	outageID int64

	confirmMu      sync.Mutex
	pendingConfirm *domain.PendingOperation
}

// Deps collects the service's collaborators.
type Deps struct {
	Channel  *channel.Channel
	Router   *router.Router
	API      *rest.Client
	Queue    *queue.Store
	Match    *match.Store
	Court    *court.Store
	Count    *confirm.Controller
	Reorders *reorder.Coordinator
	Resync   *resync.Resynchronizer
	Toasts   *notify.Dispatcher
	Journal  *history.Store
	Clock    clockwork.Clock
	AdminID  string
}

// New wires the service. Call Run to start it.
func New(d Deps) *Service {
	s := &Service{
		channel:  d.Channel,
		routes:   d.Router,
		api:      d.API,
		queue:    d.Queue,
		match:    d.Match,
		court:    d.Court,
		count:    d.Count,
		reorders: d.Reorders,
		resyncer: d.Resync,
		toasts:   d.Toasts,
		journal:  d.Journal,
		clock:    d.Clock,
		adminID:  d.AdminID,
	}
	// Nothing is trusted until the first snapshot lands.
	s.resyncing.Store(true)
	s.adminValid.Store(true)
	s.bind()
	return s
}

// Run starts the channel and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.baseCtx = ctx
	err := s.channel.Run(ctx)
	s.count.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// bind subscribes the typed topic handlers and the connectivity watcher.
func (s *Service) bind() {
	s.routes.Subscribe(events.TopicQueueUpdated, func(payload any) {
		if s.resyncing.Load() {
			return
		}
		p := payload.(events.QueueUpdatedPayload)
		s.queue.Apply(p)
		s.reorders.Resolve()
	})

	s.routes.Subscribe(events.TopicMatchUpdated, func(payload any) {
		if s.resyncing.Load() {
			return
		}
		p := payload.(events.MatchUpdatedPayload)
		s.match.Apply(p)
		s.resolvePendingConfirm(p)
	})

	s.routes.Subscribe(events.TopicCourtStatus, func(payload any) {
		if s.resyncing.Load() {
			return
		}
		s.court.Apply(payload.(domain.CourtStatus))
	})

	s.routes.Subscribe(events.TopicNotification, func(payload any) {
		s.toasts.Forward(payload.(events.NotificationPayload))
	})

	s.routes.Subscribe(events.TopicError, func(payload any) {
		p := payload.(events.ErrorPayload)
		log.Warn().Str("code", p.Code).Str("message", p.Message).Msg("server error event")
		s.toasts.Error(p.Code, p.Message)
	})

	s.channel.OnConnectivityChange(func(connected bool) {
		if connected {
			s.onConnect()
		} else {
			s.onDisconnect()
		}
	})

	if s.journal != nil {
		s.match.OnCompleted(func(m domain.Match) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.journal.RecordMatch(ctx, m); err != nil {
				log.Error().Err(err).Str("match_id", m.ID).Msg("failed to journal completed match")
			}
		})
	}
}

// onConnect starts the resynchronization loop. Deltas stay gated until a
// snapshot lands; the loop retries with backoff while the channel stays up.
func (s *Service) onConnect() {
	s.closeOutage()

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.resyncMu.Lock()
	if s.resyncCancel != nil {
		s.resyncCancel()
	}
	s.resyncCancel = cancel
	s.resyncMu.Unlock()

	go func() {
		backoff := time.Second
		for {
			rctx, rcancel := context.WithTimeout(ctx, 15*time.Second)
			err := s.resyncer.Resync(rctx)
			rcancel()
			if err == nil {
				s.resyncing.Store(false)
				return
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("resync failed")
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
		}
	}()
}

func (s *Service) onDisconnect() {
	s.resyncing.Store(true)

	s.resyncMu.Lock()
	if s.resyncCancel != nil {
		s.resyncCancel()
		s.resyncCancel = nil
	}
	s.resyncMu.Unlock()

	s.openOutage()
}

// JoinQueue validates and emits the join-queue intent. Conflict and
// validation failures come back to the caller for the originating form;
// they are never retried automatically.
func (s *Service) JoinQueue(ctx context.Context, name string, members int, contactInfo string) error {
	if err := domain.ValidateJoinQueue(name, members, contactInfo); err != nil {
		return err
	}
	intent := events.JoinQueueIntent{Name: name, Members: members, ContactInfo: contactInfo}
	if err := s.channel.Send(events.TopicJoinQueue, intent); err != nil {
		s.toasts.Warning("Connection", "Cannot join the queue while offline; please retry.")
		return fmt.Errorf("join queue: %w", err)
	}
	return nil
}

// ConfirmResult submits one side's confirmation. The local flag flips
// optimistically; the push intent goes out when connected, otherwise the
// REST fallback produces the same server-side transition. An explicit
// failure rolls the optimistic flag back.
func (s *Service) ConfirmResult(ctx context.Context, matchID, teamID string, confirmed bool) error {
	var op *domain.PendingOperation
	if confirmed {
		if snapshot, ok := s.match.Current(); ok && snapshot.ID == matchID {
			op = &domain.PendingOperation{
				OperationID:   uuid.New().String(),
				Kind:          domain.OperationConfirm,
				SubmittedAt:   s.clock.Now(),
				MatchSnapshot: &snapshot,
			}
			s.setPendingConfirm(op)
			s.match.MarkConfirmed(matchID, teamID)
		}
	}

	err := s.channel.Send(events.TopicConfirmResult, events.ConfirmResultIntent{
		MatchID:   matchID,
		TeamID:    teamID,
		Confirmed: confirmed,
	})
	if errors.Is(err, channel.ErrNotConnected) {
		err = s.api.ConfirmResult(ctx, matchID, teamID, confirmed)
	}
	if err != nil {
		if op != nil {
			s.match.Replace(op.MatchSnapshot)
			s.clearPendingConfirm(op.OperationID)
		}
		s.toasts.Error("Confirmation", "Could not submit the result confirmation.")
		return fmt.Errorf("confirm result: %w", err)
	}
	return nil
}

// AutoConfirm is the countdown's submitter: confirm on behalf of a side
// that never responded.
func (s *Service) AutoConfirm(ctx context.Context, matchID, teamID string) error {
	return s.ConfirmResult(ctx, matchID, teamID, true)
}

// Reorder applies an admin drag-to-reorder through the coordinator.
func (s *Service) Reorder(ctx context.Context, newOrder []domain.Team) error {
	if !s.adminValid.Load() {
		return ErrAdminSession
	}
	err := s.reorders.Reorder(ctx, newOrder)
	if err != nil && rest.IsAuthorization(err) {
		s.invalidateAdminSession()
	}
	return err
}

// ForceResolve completes a disputed match immediately. Prefers the push
// admin-action intent; falls back to REST when the channel is down.
func (s *Service) ForceResolve(ctx context.Context, matchID string, score1, score2 int) error {
	if !s.adminValid.Load() {
		return ErrAdminSession
	}

	err := s.channel.Send(events.TopicAdminAction, events.AdminActionIntent{
		Action:  "force-resolve",
		AdminID: s.adminID,
		Payload: map[string]any{"matchId": matchID, "score1": score1, "score2": score2},
	})
	if errors.Is(err, channel.ErrNotConnected) {
		err = s.api.ForceResolve(ctx, matchID, score1, score2)
	}
	if err != nil {
		if rest.IsAuthorization(err) {
			s.invalidateAdminSession()
			return fmt.Errorf("force resolve: %w", ErrAdminSession)
		}
		s.toasts.Error("Force resolve", "Could not force-resolve the match.")
		return fmt.Errorf("force resolve: %w", err)
	}
	return nil
}

// AdminSessionValid reports whether admin writes are still accepted.
func (s *Service) AdminSessionValid() bool {
	return s.adminValid.Load()
}

// RestoreAdminSession re-arms admin writes after re-authentication.
func (s *Service) RestoreAdminSession(token string) {
	s.api.SetToken(token)
	s.adminValid.Store(true)
}

func (s *Service) invalidateAdminSession() {
	s.adminValid.Store(false)
	s.toasts.Error("Session", "Admin session expired; please sign in again.")
}

func (s *Service) setPendingConfirm(op *domain.PendingOperation) {
	s.confirmMu.Lock()
	s.pendingConfirm = op
	s.confirmMu.Unlock()
}

func (s *Service) clearPendingConfirm(operationID string) {
	s.confirmMu.Lock()
	if s.pendingConfirm != nil && s.pendingConfirm.OperationID == operationID {
		s.pendingConfirm = nil
	}
	s.confirmMu.Unlock()
}

// DiscardPendingConfirm drops the optimistic confirm record. Wired into the
// resynchronizer alongside the reorder coordinator's Discard.
func (s *Service) DiscardPendingConfirm() {
	s.confirmMu.Lock()
	s.pendingConfirm = nil
	s.confirmMu.Unlock()
}

// resolvePendingConfirm retires the pending confirm once an authoritative
// event covers its match.
func (s *Service) resolvePendingConfirm(p events.MatchUpdatedPayload) {
	switch p.Event {
	case events.ConfirmationReceived, events.ConfirmationUpdated,
		events.MatchCompleted, events.MatchTimeoutResolved, events.MatchForceResolved:
	default:
		return
	}
	s.confirmMu.Lock()
	if s.pendingConfirm != nil && s.pendingConfirm.MatchSnapshot != nil &&
		s.pendingConfirm.MatchSnapshot.ID == p.Match.ID {
		s.pendingConfirm = nil
	}
	s.confirmMu.Unlock()
}

func (s *Service) openOutage() {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := s.journal.OpenOutage(ctx, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to journal outage start")
		return
	}
	s.outageMu.Lock()
	s.outageID = id
	s.outageMu.Unlock()
}

func (s *Service) closeOutage() {
	if s.journal == nil {
		return
	}
	s.outageMu.Lock()
	id := s.outageID
	s.outageID = 0
	s.outageMu.Unlock()
	if id == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	attempts := s.channel.State().ReconnectAttempts
	if err := s.journal.CloseOutage(ctx, id, s.clock.Now(), attempts); err != nil {
		log.Error().Err(err).Msg("failed to journal outage end")
	}
}
