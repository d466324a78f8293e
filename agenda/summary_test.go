package agenda_test

import (
	"testing"
	"time"

	"github.com/psicoagenda/practice-engine/agenda"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func session(patientID agenda.PatientID, day string, status agenda.SessionStatus, value int, paid bool) agenda.Session {
	return agenda.Session{
		ID:            agenda.SessionID("s-" + day + "-" + string(patientID)),
		PatientID:     patientID,
		OccursAt:      at(day, 10),
		Status:        status,
		Paid:          paid,
		ValueSnapshot: agenda.MoneyFromInt(value),
	}
}

func assertMoney(t *testing.T, label string, got agenda.Money, want int) {
	t.Helper()
	if !got.Equal(agenda.MoneyFromInt(want)) {
		t.Errorf("%s = %s, want %d", label, got, want)
	}
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

func TestSummarize_BillableVersusExcluded(t *testing.T) {
	// GIVEN: One month with a completed paid session (200), a patient
	//        absence unpaid (200), a therapist absence, and a cancellation
	// WHEN: Summarizing the month
	// THEN: Expected 400, received 200, pending 200; the therapist absence
	//       and the cancellation contribute nothing

	sessions := []agenda.Session{
		session("p1", "2026-03-04", agenda.StatusCompleted, 200, true),
		session("p1", "2026-03-11", agenda.StatusPatientAbsent, 200, false),
		session("p1", "2026-03-18", agenda.StatusTherapistAbsent, 200, false),
		session("p1", "2026-03-25", agenda.StatusCancelled, 200, false),
	}

	s := agenda.Summarize(sessions, 2026, time.March, nil)

	assertMoney(t, "Expected", s.Expected, 400)
	assertMoney(t, "Received", s.Received, 200)
	assertMoney(t, "Pending", s.Pending, 200)
	if s.CompletedCount != 1 || s.AbsentCount != 1 {
		t.Errorf("counts completed=%d absent=%d, want 1 and 1", s.CompletedCount, s.AbsentCount)
	}
	if s.UnpaidCount != 1 {
		t.Errorf("unpaid count %d, want 1", s.UnpaidCount)
	}
	if s.SessionsCount != 2 {
		t.Errorf("sessions count %d, want 2 (only contributing sessions)", s.SessionsCount)
	}
}

func TestSummarize_ScheduledIsProjectedNotExpected(t *testing.T) {
	// GIVEN: A SCHEDULED session worth 180
	// WHEN: Summarizing
	// THEN: It shows up in projected only

	sessions := []agenda.Session{
		session("p1", "2026-03-04", agenda.StatusScheduled, 180, false),
	}

	s := agenda.Summarize(sessions, 2026, time.March, nil)

	assertMoney(t, "Projected", s.Projected, 180)
	assertMoney(t, "Expected", s.Expected, 0)
	if s.ScheduledCount != 1 {
		t.Errorf("scheduled count %d, want 1", s.ScheduledCount)
	}
}

func TestSummarize_UnconfirmedNeverCounts(t *testing.T) {
	// GIVEN: An UNCONFIRMED import with a matched snapshot of 200
	// WHEN: Summarizing
	// THEN: Every figure stays zero; provisional sessions are invisible
	//       to the money views

	sessions := []agenda.Session{
		session(agenda.UnmatchedPatient, "2026-03-04", agenda.StatusUnconfirmed, 200, false),
	}

	s := agenda.Summarize(sessions, 2026, time.March, nil)

	assertMoney(t, "Expected", s.Expected, 0)
	assertMoney(t, "Projected", s.Projected, 0)
	if s.SessionsCount != 0 {
		t.Errorf("sessions count %d, want 0", s.SessionsCount)
	}
}

func TestSummarize_ScopesToMonthAndPatient(t *testing.T) {
	// GIVEN: Sessions across two months and two patients
	// WHEN: Summarizing March for patient p1
	// THEN: Only p1's March session counts

	sessions := []agenda.Session{
		session("p1", "2026-03-04", agenda.StatusCompleted, 200, false),
		session("p1", "2026-04-01", agenda.StatusCompleted, 200, false),
		session("p2", "2026-03-05", agenda.StatusCompleted, 300, false),
	}

	p1 := agenda.PatientID("p1")
	s := agenda.Summarize(sessions, 2026, time.March, &p1)

	assertMoney(t, "Expected", s.Expected, 200)
	if s.SessionsCount != 1 {
		t.Errorf("sessions count %d, want 1", s.SessionsCount)
	}
}

// =============================================================================
// PER-PATIENT STATEMENTS
// =============================================================================

func TestMonthlyStatements_GroupsAndTotals(t *testing.T) {
	// GIVEN: Two patients with mixed March sessions
	// WHEN: Building the month's statements
	// THEN: One statement per patient, sorted by name, sessions in date
	//       order, totals over billable rows only

	patients := []agenda.Patient{
		{ID: "p2", Name: "Bruno Santos", ValuePerSession: agenda.MoneyFromInt(300)},
		{ID: "p1", Name: "Ana Silva", ValuePerSession: agenda.MoneyFromInt(200), RequiresReceipt: true},
	}
	sessions := []agenda.Session{
		session("p1", "2026-03-11", agenda.StatusCompleted, 200, true),
		session("p1", "2026-03-04", agenda.StatusCompleted, 200, false),
		session("p1", "2026-03-18", agenda.StatusScheduled, 200, false),
		session("p1", "2026-03-25", agenda.StatusCancelled, 200, false),
		session("p2", "2026-03-05", agenda.StatusPatientAbsent, 300, false),
	}

	statements := agenda.MonthlyStatements(patients, sessions, 2026, time.March)
	if len(statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(statements))
	}

	ana := statements[0]
	if ana.PatientName != "Ana Silva" {
		t.Fatalf("first statement for %q, want Ana Silva (name order)", ana.PatientName)
	}
	if !ana.RequiresReceipt {
		t.Error("receipt flag was not carried onto the statement")
	}
	// The cancelled row is dropped; the scheduled row is listed but unbilled.
	if len(ana.Sessions) != 3 {
		t.Fatalf("ana has %d rows, want 3", len(ana.Sessions))
	}
	if agenda.DayStamp(ana.Sessions[0].OccursAt) != "2026-03-04" {
		t.Errorf("rows out of date order: first is %s", agenda.DayStamp(ana.Sessions[0].OccursAt))
	}
	assertMoney(t, "ana.Total", ana.Total, 400)
	assertMoney(t, "ana.Paid", ana.Paid, 200)
	assertMoney(t, "ana.Pending", ana.Pending, 200)

	bruno := statements[1]
	assertMoney(t, "bruno.Total", bruno.Total, 300)
	assertMoney(t, "bruno.Pending", bruno.Pending, 300)
}

func TestMonthlyStatements_SkipsUnknownAndSentinelOwners(t *testing.T) {
	// GIVEN: A session owned by the unmatched sentinel and one owned by a
	//        patient missing from the roster slice
	// WHEN: Building statements
	// THEN: Neither produces a statement

	patients := []agenda.Patient{
		{ID: "p1", Name: "Ana Silva", ValuePerSession: agenda.MoneyFromInt(200)},
	}
	sessions := []agenda.Session{
		session(agenda.UnmatchedPatient, "2026-03-04", agenda.StatusUnconfirmed, 0, false),
		session("ghost", "2026-03-05", agenda.StatusCompleted, 100, false),
	}

	statements := agenda.MonthlyStatements(patients, sessions, 2026, time.March)
	if len(statements) != 0 {
		t.Fatalf("got %d statements, want 0", len(statements))
	}
}

// =============================================================================
// UPCOMING
// =============================================================================

func TestUpcoming_FiltersAndSorts(t *testing.T) {
	// GIVEN: Past, future, and settled sessions around a fixed now
	// WHEN: Listing upcoming
	// THEN: Only future SCHEDULED sessions, soonest first

	now := at("2026-03-10", 0)
	sessions := []agenda.Session{
		session("p1", "2026-03-25", agenda.StatusScheduled, 200, false),
		session("p1", "2026-03-04", agenda.StatusScheduled, 200, false), // past
		session("p1", "2026-03-11", agenda.StatusScheduled, 200, false),
		session("p1", "2026-03-18", agenda.StatusCompleted, 200, false), // settled
	}

	upcoming := agenda.Upcoming(sessions, now)
	if len(upcoming) != 2 {
		t.Fatalf("got %d upcoming sessions, want 2", len(upcoming))
	}
	if agenda.DayStamp(upcoming[0].OccursAt) != "2026-03-11" ||
		agenda.DayStamp(upcoming[1].OccursAt) != "2026-03-25" {
		t.Errorf("order %s, %s; want 2026-03-11 then 2026-03-25",
			agenda.DayStamp(upcoming[0].OccursAt), agenda.DayStamp(upcoming[1].OccursAt))
	}
}
