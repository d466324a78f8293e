/*
reconcile.go - External calendar reconciliation

PURPOSE:
  Ingests externally sourced calendar events, matches them against the
  patient roster by name, and creates provisional sessions a human
  operator must resolve.

NEVER AUTO-CONFIRMS:
  Imports are inherently untrustworthy (title collisions, renamed
  patients), so even a perfect name match produces an UNCONFIRMED
  session. Confirmation is a separate, explicit operator action.

MATCHING:
  Exact, case-sensitive comparison of the event title against each
  patient's full name. A match pre-fills the patient id and current
  rate; no match leaves the session owned by the UnmatchedPatient
  sentinel with a zero snapshot.

SEE ALSO:
  - lifecycle.go: Status machine the resolved session joins
  - calsync: ICS feed source for ExternalEvent values
*/
package agenda

import (
	"context"
	"fmt"
)

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	Patients PatientStore
	Sessions SessionStore
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{Patients: store, Sessions: store}
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Imported []Session // provisional sessions created, with assigned ids
	Skipped  int       // events already reconciled at that exact date-time
	Matched  int       // imported sessions pre-filled with a roster patient
}

// ImportExternalEvents creates an UNCONFIRMED session per candidate event.
//
// An event is skipped when a session already exists at the exact same
// date-time whose status is not itself UNCONFIRMED: the operator already
// reconciled that slot into a real session, and reimporting would
// resurrect it.
func (r *Reconciler) ImportExternalEvents(ctx context.Context, events []ExternalEvent) (ImportReport, error) {
	var report ImportReport

	existing, err := r.Sessions.ListSessions(ctx)
	if err != nil {
		return report, err
	}
	roster, err := r.Patients.ListPatients(ctx)
	if err != nil {
		return report, err
	}

	for _, event := range events {
		if alreadyReconciled(existing, event) {
			report.Skipped++
			continue
		}

		session := Session{
			PatientID:     UnmatchedPatient,
			OccursAt:      event.OccursAt,
			Status:        StatusUnconfirmed,
			Paid:          false,
			ValueSnapshot: ZeroMoney(),
			ImportedLabel: event.Title,
		}
		if match := matchByName(roster, event.Title); match != nil {
			session.PatientID = match.ID
			session.ValueSnapshot = match.ValuePerSession
			report.Matched++
		}

		id, err := r.Sessions.InsertSession(ctx, session)
		if err != nil {
			return report, fmt.Errorf("import %q: %w", event.Title, err)
		}
		session.ID = id
		report.Imported = append(report.Imported, session)
	}

	return report, nil
}

func alreadyReconciled(existing []Session, event ExternalEvent) bool {
	for _, s := range existing {
		if s.OccursAt.Equal(event.OccursAt) && s.Status != StatusUnconfirmed {
			return true
		}
	}
	return false
}

func matchByName(roster []Patient, title string) *Patient {
	for i := range roster {
		if roster[i].Name == title {
			return &roster[i]
		}
	}
	return nil
}

// =============================================================================
// RESOLUTION / REJECTION
// =============================================================================

// Resolve confirms an UNCONFIRMED session against an operator-chosen
// patient: the session takes that patient's id and current rate and
// becomes SCHEDULED. The session is left unchanged on any error.
func (r *Reconciler) Resolve(ctx context.Context, sessionID SessionID, patientID PatientID) error {
	session, err := r.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("resolve %s: %w", sessionID, ErrSessionNotFound)
	}
	if session.Status != StatusUnconfirmed {
		return &TransitionError{
			SessionID: sessionID,
			From:      session.Status,
			To:        StatusScheduled,
			Rule:      "only UNCONFIRMED sessions can be resolved",
		}
	}

	patient, err := r.Patients.GetPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if patient == nil {
		return fmt.Errorf("resolve %s against %s: %w", sessionID, patientID, ErrPatientNotFound)
	}

	session.PatientID = patient.ID
	session.ValueSnapshot = patient.ValuePerSession
	session.Status = StatusScheduled
	return r.Sessions.UpdateSession(ctx, *session)
}

// Reject discards an UNCONFIRMED session outright.
func (r *Reconciler) Reject(ctx context.Context, sessionID SessionID) error {
	session, err := r.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("reject %s: %w", sessionID, ErrSessionNotFound)
	}
	if session.Status != StatusUnconfirmed {
		return &TransitionError{
			SessionID: sessionID,
			From:      session.Status,
			Rule:      "only UNCONFIRMED sessions can be rejected",
		}
	}
	return r.Sessions.DeleteSession(ctx, sessionID)
}
