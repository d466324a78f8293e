package agenda_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/psicoagenda/practice-engine/agenda"
	"github.com/psicoagenda/practice-engine/agenda/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func event(title string, at time.Time) agenda.ExternalEvent {
	return agenda.ExternalEvent{Title: title, OccursAt: at}
}

func at(day string, hour int) time.Time {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_MatchedEventStaysUnconfirmed(t *testing.T) {
	// GIVEN: A roster patient named "Ana Silva" with rate 200
	// WHEN: Importing an event titled exactly "Ana Silva"
	// THEN: The session is pre-filled with the patient and rate but is
	//       still UNCONFIRMED; a name match never confirms by itself

	ctx := context.Background()
	mem := store.NewMemory()
	ana := savePatient(t, mem, agenda.Patient{
		Name:            "Ana Silva",
		ValuePerSession: agenda.MoneyFromInt(200),
		Recurrence:      agenda.RecurrenceWeekly,
		AnchorWeekday:   weekdayPtr(time.Wednesday),
		Status:          agenda.PatientActive,
	})

	report, err := agenda.NewReconciler(mem).ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Ana Silva", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("ImportExternalEvents: %v", err)
	}

	if report.Matched != 1 {
		t.Errorf("matched %d, want 1", report.Matched)
	}
	if len(report.Imported) != 1 {
		t.Fatalf("imported %d sessions, want 1", len(report.Imported))
	}

	s := report.Imported[0]
	if s.Status != agenda.StatusUnconfirmed {
		t.Errorf("status %s, want UNCONFIRMED even on a perfect match", s.Status)
	}
	if s.PatientID != ana.ID {
		t.Errorf("patient %s, want %s", s.PatientID, ana.ID)
	}
	if !s.ValueSnapshot.Equal(agenda.MoneyFromInt(200)) {
		t.Errorf("snapshot %s, want the patient rate 200", s.ValueSnapshot)
	}
	if s.ImportedLabel != "Ana Silva" {
		t.Errorf("imported label %q, want the event title", s.ImportedLabel)
	}
}

func TestImport_UnmatchedEventUsesSentinel(t *testing.T) {
	// GIVEN: An empty roster
	// WHEN: Importing an event with an unknown title
	// THEN: The session belongs to the unmatched sentinel with a zero
	//       snapshot and keeps the title for the operator

	ctx := context.Background()
	mem := store.NewMemory()

	report, err := agenda.NewReconciler(mem).ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Consulta - desconhecido", at("2026-03-04", 15))})
	if err != nil {
		t.Fatalf("ImportExternalEvents: %v", err)
	}

	s := report.Imported[0]
	if s.PatientID != agenda.UnmatchedPatient {
		t.Errorf("patient %s, want the unmatched sentinel", s.PatientID)
	}
	if !s.ValueSnapshot.IsZero() {
		t.Errorf("snapshot %s, want zero", s.ValueSnapshot)
	}
	if s.ImportedLabel != "Consulta - desconhecido" {
		t.Errorf("imported label %q, want the event title", s.ImportedLabel)
	}
}

func TestImport_CaseSensitiveMatching(t *testing.T) {
	// GIVEN: A roster patient "Ana Silva"
	// WHEN: Importing "ana silva"
	// THEN: No match; matching is exact and case-sensitive

	ctx := context.Background()
	mem := store.NewMemory()
	savePatient(t, mem, agenda.Patient{
		Name:            "Ana Silva",
		ValuePerSession: agenda.MoneyFromInt(200),
		Recurrence:      agenda.RecurrenceWeekly,
		AnchorWeekday:   weekdayPtr(time.Wednesday),
		Status:          agenda.PatientActive,
	})

	report, err := agenda.NewReconciler(mem).ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("ana silva", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("ImportExternalEvents: %v", err)
	}
	if report.Matched != 0 {
		t.Errorf("matched %d, want 0", report.Matched)
	}
	if report.Imported[0].PatientID != agenda.UnmatchedPatient {
		t.Errorf("patient %s, want the unmatched sentinel", report.Imported[0].PatientID)
	}
}

func TestImport_SkipsAlreadyReconciledSlot(t *testing.T) {
	// GIVEN: A confirmed SCHEDULED session at 2026-03-04 10:00
	// WHEN: Importing an event at that exact date-time
	// THEN: The event is skipped; reimporting must not resurrect slots the
	//       operator already reconciled

	ctx := context.Background()
	mem := store.NewMemory()
	ana := savePatient(t, mem, agenda.Patient{
		Name:            "Ana Silva",
		ValuePerSession: agenda.MoneyFromInt(200),
		Recurrence:      agenda.RecurrenceWeekly,
		AnchorWeekday:   weekdayPtr(time.Wednesday),
		Status:          agenda.PatientActive,
	})
	if _, err := mem.InsertSession(ctx, agenda.Session{
		PatientID:     ana.ID,
		OccursAt:      at("2026-03-04", 10),
		Status:        agenda.StatusScheduled,
		ValueSnapshot: agenda.MoneyFromInt(200),
	}); err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	report, err := agenda.NewReconciler(mem).ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Ana Silva", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("ImportExternalEvents: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped %d, want 1", report.Skipped)
	}
	if len(report.Imported) != 0 {
		t.Errorf("imported %d sessions, want 0", len(report.Imported))
	}
}

func TestImport_PendingUnconfirmedDoesNotBlockReimport(t *testing.T) {
	// GIVEN: A prior import left an UNCONFIRMED session at a slot
	// WHEN: Importing an event at that exact date-time again
	// THEN: A new provisional session is created; only reconciled slots
	//       block reimport

	ctx := context.Background()
	mem := store.NewMemory()
	rec := agenda.NewReconciler(mem)

	if _, err := rec.ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Maria", at("2026-03-04", 10))}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	report, err := rec.ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Maria", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if report.Skipped != 0 || len(report.Imported) != 1 {
		t.Errorf("skipped=%d imported=%d, want 0 and 1", report.Skipped, len(report.Imported))
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolve_ConfirmsAgainstChosenPatient(t *testing.T) {
	// GIVEN: An unmatched UNCONFIRMED import and a roster patient
	// WHEN: Resolving the session against that patient
	// THEN: The session takes the patient's id and current rate, becomes
	//       SCHEDULED, and keeps the imported label for provenance

	ctx := context.Background()
	mem := store.NewMemory()
	rec := agenda.NewReconciler(mem)
	carla := savePatient(t, mem, agenda.Patient{
		Name:            "Carla Costa",
		ValuePerSession: agenda.MoneyFromInt(175),
		Recurrence:      agenda.RecurrenceWeekly,
		AnchorWeekday:   weekdayPtr(time.Monday),
		Status:          agenda.PatientActive,
	})

	report, err := rec.ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("C. Costa", at("2026-03-02", 9))})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	imported := report.Imported[0]

	if err := rec.Resolve(ctx, imported.ID, carla.ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	resolved, err := mem.GetSession(ctx, imported.ID)
	if err != nil || resolved == nil {
		t.Fatalf("GetSession: %v", err)
	}
	if resolved.Status != agenda.StatusScheduled {
		t.Errorf("status %s, want SCHEDULED", resolved.Status)
	}
	if resolved.PatientID != carla.ID {
		t.Errorf("patient %s, want %s", resolved.PatientID, carla.ID)
	}
	if !resolved.ValueSnapshot.Equal(agenda.MoneyFromInt(175)) {
		t.Errorf("snapshot %s, want the patient rate 175", resolved.ValueSnapshot)
	}
	if resolved.ImportedLabel != "C. Costa" {
		t.Errorf("imported label %q was not preserved", resolved.ImportedLabel)
	}
}

func TestResolve_UnknownPatientLeavesSessionUntouched(t *testing.T) {
	// GIVEN: An UNCONFIRMED import
	// WHEN: Resolving against a patient id that does not exist
	// THEN: ErrPatientNotFound, and the session is unchanged

	ctx := context.Background()
	mem := store.NewMemory()
	rec := agenda.NewReconciler(mem)

	report, err := rec.ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Maria", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	imported := report.Imported[0]

	err = rec.Resolve(ctx, imported.ID, "no-such-patient")
	if !errors.Is(err, agenda.ErrPatientNotFound) {
		t.Fatalf("got %v, want ErrPatientNotFound", err)
	}

	after, _ := mem.GetSession(ctx, imported.ID)
	if after == nil || after.Status != agenda.StatusUnconfirmed {
		t.Errorf("session changed after a failed resolve: %+v", after)
	}
}

func TestResolve_RejectsNonUnconfirmedSession(t *testing.T) {
	// GIVEN: A regular SCHEDULED session
	// WHEN: Trying to resolve it
	// THEN: An illegal transition error

	ctx := context.Background()
	mem := store.NewMemory()
	ana := savePatient(t, mem, weeklyPatient("ana", time.Wednesday))

	id, err := mem.InsertSession(ctx, agenda.Session{
		PatientID:     ana.ID,
		OccursAt:      at("2026-03-04", 10),
		Status:        agenda.StatusScheduled,
		ValueSnapshot: agenda.MoneyFromInt(200),
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	err = agenda.NewReconciler(mem).Resolve(ctx, id, ana.ID)
	if !errors.Is(err, agenda.ErrIllegalTransition) {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}
}

// =============================================================================
// REJECTION
// =============================================================================

func TestReject_DeletesUnconfirmedOnly(t *testing.T) {
	// GIVEN: One UNCONFIRMED import and one SCHEDULED session
	// WHEN: Rejecting each
	// THEN: The import is deleted; the scheduled session is protected

	ctx := context.Background()
	mem := store.NewMemory()
	rec := agenda.NewReconciler(mem)
	ana := savePatient(t, mem, weeklyPatient("ana", time.Wednesday))

	report, err := rec.ImportExternalEvents(ctx,
		[]agenda.ExternalEvent{event("Maria", at("2026-03-04", 10))})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	imported := report.Imported[0]

	scheduledID, err := mem.InsertSession(ctx, agenda.Session{
		PatientID:     ana.ID,
		OccursAt:      at("2026-03-11", 10),
		Status:        agenda.StatusScheduled,
		ValueSnapshot: agenda.MoneyFromInt(200),
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	if err := rec.Reject(ctx, imported.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if s, _ := mem.GetSession(ctx, imported.ID); s != nil {
		t.Errorf("rejected session still present")
	}

	err = rec.Reject(ctx, scheduledID)
	if !errors.Is(err, agenda.ErrIllegalTransition) {
		t.Fatalf("got %v, want ErrIllegalTransition for a SCHEDULED session", err)
	}
}
