package reorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
	"github.com/courtside/courtside/internal/rest"
)

// ErrReorderInFlight rejects a second reorder issued before the first
// resolves. Racing the server with two competing orders is never allowed.
var ErrReorderInFlight = errors.New("reorder in progress")

// API is the slice of the REST client the coordinator needs.
type API interface {
	ReorderQueue(ctx context.Context, order []rest.TeamPosition) error
}

// QueueStore is the slice of the queue store the coordinator needs.
type QueueStore interface {
	State() domain.QueueState
	Replace(state domain.QueueState)
}

// Coordinator applies an admin drag-to-reorder optimistically: the local
// queue reflects the new order immediately, a snapshot taken beforehand
// backs the rollback, and the server's own queue-updated echo converges the
// canonical state on success. At most one reorder is in flight per queue.
type Coordinator struct {
	api   API
	queue QueueStore
	clock clockwork.Clock

	mu       sync.Mutex
	inFlight bool
	pending  *domain.PendingOperation
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator(api API, queue QueueStore, clock clockwork.Clock) *Coordinator {
	return &Coordinator{api: api, queue: queue, clock: clock}
}

// Reorder submits newOrder, the waiting teams in their desired sequence.
// Positions are derived from slice index. On server rejection the optimistic
// state is discarded and the pre-reorder snapshot reinstated bit for bit.
func (c *Coordinator) Reorder(ctx context.Context, newOrder []domain.Team) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrReorderInFlight
	}
	snapshot := c.queue.State()
	op := &domain.PendingOperation{
		OperationID:   uuid.New().String(),
		Kind:          domain.OperationReorder,
		SubmittedAt:   c.clock.Now(),
		QueueSnapshot: &snapshot,
	}
	c.inFlight = true
	c.pending = op
	c.mu.Unlock()

	c.queue.Replace(applyOrder(snapshot, newOrder))

	order := make([]rest.TeamPosition, len(newOrder))
	for i, t := range newOrder {
		order[i] = rest.TeamPosition{TeamID: t.ID, Position: i + 1}
	}

	log.Info().
		Str("operation_id", op.OperationID).
		Int("teams", len(order)).
		Msg("submitting optimistic queue reorder")

	if err := c.api.ReorderQueue(ctx, order); err != nil {
		c.queue.Replace(*op.QueueSnapshot)
		c.clear(op.OperationID)
		log.Warn().
			Err(err).
			Str("operation_id", op.OperationID).
			Msg("reorder rejected; rolled back to snapshot")
		return fmt.Errorf("reorder: %w", err)
	}

	// Success: leave the optimistic state alone. The server's queue-updated
	// echo will arrive and the reducer converges to the same value; the
	// pending record stays until that echo (or a resync) retires it.
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
	return nil
}

// Resolve retires the pending operation once the authoritative echo arrives.
// Called by the app on every queue-updated delta.
func (c *Coordinator) Resolve() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && !c.inFlight {
		log.Debug().
			Str("operation_id", c.pending.OperationID).
			Msg("reorder confirmed by authoritative delta")
		c.pending = nil
	}
}

// Discard drops the pending operation without rollback. The reconnect
// resynchronizer calls this before installing a fresh snapshot: after an
// outage the optimistic premise can no longer be trusted.
func (c *Coordinator) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		log.Info().
			Str("operation_id", c.pending.OperationID).
			Msg("discarding stale pending reorder")
	}
	c.pending = nil
	c.inFlight = false
}

// Pending reports whether an optimistic reorder is awaiting its echo.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Coordinator) clear(operationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.OperationID == operationID {
		c.pending = nil
	}
	c.inFlight = false
}

// applyOrder rebuilds the queue state with waiting teams renumbered to match
// newOrder. Playing and cooldown teams are untouched; a waiting team missing
// from newOrder is renumbered after the reordered block so positions stay
// dense no matter what the caller passed.
func applyOrder(state domain.QueueState, newOrder []domain.Team) domain.QueueState {
	next := state.Clone()
	pos := make(map[string]int, len(newOrder))
	for i, t := range newOrder {
		pos[t.ID] = i + 1
	}

	reordered := make([]domain.Team, 0, len(next.Teams))
	var others []domain.Team
	for _, t := range next.Teams {
		if p, ok := pos[t.ID]; ok && t.Status == domain.TeamStatusWaiting {
			t.Position = p
			reordered = append(reordered, t)
		} else {
			others = append(others, t)
		}
	}
	sort.SliceStable(reordered, func(i, j int) bool {
		return reordered[i].Position < reordered[j].Position
	})
	nextPos := len(reordered) + 1
	for i := range others {
		if others[i].Status == domain.TeamStatusWaiting {
			others[i].Position = nextPos
			nextPos++
		}
	}
	next.Teams = append(reordered, others...)
	return next
}
