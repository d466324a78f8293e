/*
errors.go - Centralized error types for the agenda engine

PURPOSE:
  All engine errors in one place. Callers classify with errors.Is and
  recover locally; nothing here is fatal to the surrounding process.

ERROR CATEGORIES:
  1. Configuration errors - A patient record violates the recurrence invariant
  2. Conflict errors      - Per-(patient, day) uniqueness violations
  3. Transition errors    - Illegal status changes or payment toggles
  4. Not-found errors     - References to vanished patients or sessions

USAGE:
  if errors.Is(err, agenda.ErrDuplicateSession) {
      // already scheduled that day; safe to skip during generation
  }

SEE ALSO:
  - generate.go: Treats ErrDuplicateSession as success-no-op
  - lifecycle.go: Produces TransitionError
*/
package agenda

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingAnchorWeekday is returned when a recurring patient has no
	// anchor weekday. Generation skips the patient and counts the skip.
	ErrMissingAnchorWeekday = errors.New("recurrence requires anchor weekday")

	// ErrDuplicateSession is returned when an insert would violate the
	// per-(patient, calendar day) uniqueness guarantee. Expected during
	// repeated generation; a genuine conflict everywhere else.
	ErrDuplicateSession = errors.New("session already exists for patient on day")

	// ErrIllegalTransition is returned for a status change or payment
	// toggle the lifecycle does not define.
	ErrIllegalTransition = errors.New("illegal session transition")

	// ErrNotBillable is returned when toggling paid on a session whose
	// status is still SCHEDULED or UNCONFIRMED.
	ErrNotBillable = errors.New("session is not billable yet")

	// ErrPatientNotFound is returned when a referenced patient no longer exists.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrSessionNotFound is returned when a referenced session no longer exists.
	ErrSessionNotFound = errors.New("session not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError marks a patient record that cannot participate in
// generation. The batch continues without it.
type ConfigurationError struct {
	PatientID PatientID
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("patient %s misconfigured: %s", e.PatientID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrMissingAnchorWeekday }

// DuplicateSessionError reports the existing session that blocks an insert.
type DuplicateSessionError struct {
	PatientID  PatientID
	Day        string // YYYY-MM-DD
	ExistingID SessionID
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session already exists for patient %s on %s (session: %s)",
		e.PatientID, e.Day, e.ExistingID)
}

func (e *DuplicateSessionError) Unwrap() error { return ErrDuplicateSession }

// TransitionError reports the specific lifecycle rule that was violated.
type TransitionError struct {
	SessionID SessionID
	From      SessionStatus
	To        SessionStatus
	Rule      string
}

func (e *TransitionError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("session %s: %s (status %s)", e.SessionID, e.Rule, e.From)
	}
	return fmt.Sprintf("session %s: no transition %s -> %s", e.SessionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing patient or session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsConflict returns true if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSession)
}

// IsClientError returns true if the error is due to invalid input rather
// than an engine failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrNotBillable) ||
		errors.Is(err, ErrMissingAnchorWeekday) ||
		errors.Is(err, ErrDuplicateSession)
}
