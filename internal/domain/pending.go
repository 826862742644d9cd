package domain

import "time"

// OperationKind identifies the two locally-originated optimistic write paths.
type OperationKind string

const (
	OperationReorder OperationKind = "reorder"
	OperationConfirm OperationKind = "confirm"
)

// PendingOperation records an optimistic local mutation awaiting the server's
// authoritative echo. The snapshot captured before the mutation makes
// rollback a pure replace. A pending operation is destroyed when the echo
// arrives, when the request explicitly fails, or when a reconnect resync
// invalidates its premise.
type PendingOperation struct {
	OperationID string
	Kind        OperationKind
	SubmittedAt time.Time

	// Exactly one of these is set, depending on Kind.
	QueueSnapshot *QueueState
	MatchSnapshot *Match
}
