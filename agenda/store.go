/*
store.go - Persistence interfaces for the roster and the session book

PURPOSE:
  Defines the contract between the engine and its persistence
  collaborator. The engine is storage-agnostic: it only ever lists,
  inserts, updates, and deletes through these interfaces.

KEY INTERFACES:
  PatientStore: Roster access
  SessionStore: Session instances, with the uniqueness guarantee below

UNIQUENESS GUARANTEE:
  A SessionStore must hold at most one owned, confirmed session per
  (patient, calendar day). InsertSession enforces this inside its own
  critical section, so check-then-insert races between concurrent
  generation passes collapse into ErrDuplicateSession, which the
  generation engine treats as "already exists, skip".

  Provisional sessions (status UNCONFIRMED) and sessions owned by the
  UnmatchedPatient sentinel are exempt: they have not been confirmed
  into the book yet.

ID ASSIGNMENT:
  InsertSession assigns the definitive id and returns it. Callers may
  pass a placeholder id; the engine never relies on final id identity
  for deduplication within a generation pass.

IMPLEMENTATIONS:
  - agenda/store: In-memory, mutex-serialized (tests, demo mode)
  - store/sqlite: SQLite with a partial unique index

SEE ALSO:
  - generate.go, reconcile.go, lifecycle.go: Consumers
*/
package agenda

import (
	"context"
	"time"
)

// =============================================================================
// PATIENT STORE
// =============================================================================

type PatientStore interface {
	// ListPatients returns the full roster.
	ListPatients(ctx context.Context) ([]Patient, error)

	// GetPatient returns a patient or nil if absent.
	GetPatient(ctx context.Context, id PatientID) (*Patient, error)

	// SavePatient inserts or replaces a patient record. An empty ID is
	// replaced with a newly assigned one, which is returned.
	SavePatient(ctx context.Context, p Patient) (PatientID, error)
}

// =============================================================================
// SESSION STORE
// =============================================================================

type SessionStore interface {
	// ListSessions returns every session instance.
	ListSessions(ctx context.Context) ([]Session, error)

	// ListSessionsInMonth returns sessions occurring in the calendar
	// month, ordered by OccursAt ascending.
	ListSessionsInMonth(ctx context.Context, year int, month time.Month) ([]Session, error)

	// GetSession returns a session or nil if absent.
	GetSession(ctx context.Context, id SessionID) (*Session, error)

	// InsertSession persists a new session and returns its assigned id.
	// Returns an error wrapping ErrDuplicateSession when the session
	// would be the second owned, confirmed one for (patient, day).
	InsertSession(ctx context.Context, s Session) (SessionID, error)

	// UpdateSession replaces the stored session with the same ID.
	// Returns an error wrapping ErrSessionNotFound if it vanished.
	UpdateSession(ctx context.Context, s Session) error

	// DeleteSession removes a session outright. Used to discard rejected
	// UNCONFIRMED imports; confirmed history is never implicitly pruned.
	DeleteSession(ctx context.Context, id SessionID) error

	// HasSessionOnDay reports whether any session for the patient falls
	// on the given calendar day, regardless of status or time-of-day.
	HasSessionOnDay(ctx context.Context, patientID PatientID, day time.Time) (bool, SessionID, error)
}

// Store combines both stores; the persistence collaborator usually
// implements the pair on one backend.
type Store interface {
	PatientStore
	SessionStore
}
