/*
lifecycle.go - Session status state machine and payment flag

PURPOSE:
  All session status changes flow through here, against a closed
  transition table with exhaustive matching. Nothing is time-driven;
  every transition is an explicit operator action.

TRANSITIONS:
  SCHEDULED -> COMPLETED | PATIENT_ABSENT | THERAPIST_ABSENT | CANCELLED
  COMPLETED | PATIENT_ABSENT | THERAPIST_ABSENT | CANCELLED -> SCHEDULED (revert)
  UNCONFIRMED -> (resolution or rejection only; see reconcile.go)

  The outcome statuses are terminal in practice but reverting is always
  allowed, so none is enforced as structurally terminal.

PAYMENT:
  Paid is meaningful only once a session leaves SCHEDULED/UNCONFIRMED.
  Toggling it earlier is rejected with ErrNotBillable.
*/
package agenda

import (
	"context"
	"fmt"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

var transitions = map[SessionStatus]map[SessionStatus]bool{
	StatusScheduled: {
		StatusCompleted:       true,
		StatusPatientAbsent:   true,
		StatusTherapistAbsent: true,
		StatusCancelled:       true,
	},
	StatusCompleted:       {StatusScheduled: true},
	StatusPatientAbsent:   {StatusScheduled: true},
	StatusTherapistAbsent: {StatusScheduled: true},
	StatusCancelled:       {StatusScheduled: true},
	// UNCONFIRMED deliberately has no entries: it leaves the provisional
	// state only through Reconciler.Resolve or Reconciler.Reject.
	StatusUnconfirmed: {},
}

// CanTransition reports whether the status change is defined.
func CanTransition(from, to SessionStatus) bool {
	return transitions[from][to]
}

// =============================================================================
// LIFECYCLE SERVICE
// =============================================================================

type Lifecycle struct {
	Sessions SessionStore
}

func NewLifecycle(sessions SessionStore) *Lifecycle {
	return &Lifecycle{Sessions: sessions}
}

// ChangeStatus applies one transition from the table above.
func (l *Lifecycle) ChangeStatus(ctx context.Context, id SessionID, to SessionStatus) error {
	session, err := l.Sessions.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("change status of %s: %w", id, ErrSessionNotFound)
	}

	if !CanTransition(session.Status, to) {
		return &TransitionError{SessionID: id, From: session.Status, To: to}
	}

	session.Status = to
	return l.Sessions.UpdateSession(ctx, *session)
}

// SetPaid records a payment (or its removal) on a billed session.
// Rejected while the session is still SCHEDULED or UNCONFIRMED.
func (l *Lifecycle) SetPaid(ctx context.Context, id SessionID, paid bool) error {
	session, err := l.Sessions.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("set paid on %s: %w", id, ErrSessionNotFound)
	}

	if session.Status == StatusScheduled || session.Status == StatusUnconfirmed {
		return fmt.Errorf("set paid on %s (status %s): %w", id, session.Status, ErrNotBillable)
	}

	session.Paid = paid
	return l.Sessions.UpdateSession(ctx, *session)
}
