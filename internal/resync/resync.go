package resync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
)

// Snapshots is the slice of the REST client the resynchronizer consumes.
type Snapshots interface {
	QueueSnapshot(ctx context.Context) (domain.QueueState, error)
	CurrentMatch(ctx context.Context) (*domain.Match, error)
	CourtStatus(ctx context.Context) (domain.CourtStatus, error)
}

// Stores are the canonical state owners replaced wholesale by a resync.
type Stores struct {
	Queue interface{ Replace(domain.QueueState) }
	Match interface{ Replace(*domain.Match) }
	Court interface{ Apply(domain.CourtStatus) }
}

// PendingOps is anything holding optimistic state that cannot survive an
// outage. Discard drops it without rollback; the snapshot supersedes it.
type PendingOps interface {
	Discard()
}

// DiscardFunc adapts a function to PendingOps.
type DiscardFunc func()

func (f DiscardFunc) Discard() { f() }

// Resynchronizer reconciles local state against an authoritative snapshot on
// every disconnected->connected edge. Until Resync returns, the caller keeps
// push deltas away from the stores; afterwards deltas apply against the new
// baseline.
type Resynchronizer struct {
	api     Snapshots
	stores  Stores
	pending []PendingOps
}

// New returns a resynchronizer.
func New(api Snapshots, stores Stores, pending ...PendingOps) *Resynchronizer {
	return &Resynchronizer{api: api, stores: stores, pending: pending}
}

// Resync fetches the queue, current-match and court-status snapshots and
// installs them. Pending optimistic operations are discarded first: the
// outage window means their premise can no longer be trusted. Fails without
// touching any store if any fetch fails, so a partial snapshot never
// replaces a coherent local view.
func (r *Resynchronizer) Resync(ctx context.Context) error {
	queueState, err := r.api.QueueSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}
	currentMatch, err := r.api.CurrentMatch(ctx)
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}
	courtStatus, err := r.api.CourtStatus(ctx)
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	for _, p := range r.pending {
		p.Discard()
	}

	r.stores.Queue.Replace(queueState)
	r.stores.Match.Replace(currentMatch)
	r.stores.Court.Apply(courtStatus)

	matchID := "none"
	if currentMatch != nil {
		matchID = currentMatch.ID
	}
	log.Info().
		Int("queue_teams", len(queueState.Teams)).
		Str("current_match", matchID).
		Msg("resynchronized against authoritative snapshot")
	return nil
}
