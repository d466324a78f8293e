/*
summary.go - Monthly financial aggregation

PURPOSE:
  Derives financial figures from session snapshots. Pure functions over
  explicitly passed slices; nothing here touches a store or a clock.

FIGURES:
  Expected:  value snapshots of COMPLETED + PATIENT_ABSENT sessions
  Received:  the expected portion already marked paid
  Pending:   the expected portion not yet paid
  Projected: value snapshots of SCHEDULED sessions (not yet expected)

  CANCELLED, THERAPIST_ABSENT, and UNCONFIRMED sessions never count
  toward any figure.
*/
package agenda

import (
	"sort"
	"time"
)

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// FinancialSummary aggregates one calendar month, optionally scoped to a
// single patient. Derived, never stored.
type FinancialSummary struct {
	Year  int
	Month time.Month

	Expected  Money
	Received  Money
	Pending   Money
	Projected Money

	SessionsCount  int // sessions contributing to any figure
	CompletedCount int
	AbsentCount    int // patient absences
	ScheduledCount int
	UnpaidCount    int // billable sessions awaiting payment
}

// Summarize aggregates the sessions occurring in (year, month). Pass a
// non-nil patientID to scope the figures to one patient.
func Summarize(sessions []Session, year int, month time.Month, patientID *PatientID) FinancialSummary {
	summary := FinancialSummary{
		Year:      year,
		Month:     month,
		Expected:  ZeroMoney(),
		Received:  ZeroMoney(),
		Pending:   ZeroMoney(),
		Projected: ZeroMoney(),
	}

	for _, s := range sessions {
		if s.OccursAt.Year() != year || s.OccursAt.Month() != month {
			continue
		}
		if patientID != nil && s.PatientID != *patientID {
			continue
		}

		switch s.Status {
		case StatusScheduled:
			summary.Projected = summary.Projected.Add(s.ValueSnapshot)
			summary.ScheduledCount++
			summary.SessionsCount++

		case StatusCompleted, StatusPatientAbsent:
			summary.Expected = summary.Expected.Add(s.ValueSnapshot)
			if s.Paid {
				summary.Received = summary.Received.Add(s.ValueSnapshot)
			} else {
				summary.Pending = summary.Pending.Add(s.ValueSnapshot)
				summary.UnpaidCount++
			}
			if s.Status == StatusCompleted {
				summary.CompletedCount++
			} else {
				summary.AbsentCount++
			}
			summary.SessionsCount++

		case StatusCancelled, StatusTherapistAbsent, StatusUnconfirmed:
			// Never billable, never projected.
		}
	}

	return summary
}

// =============================================================================
// PER-PATIENT STATEMENTS
// =============================================================================

// PatientStatement is the month's billing view for one patient: the
// sessions that may bill, with running totals.
type PatientStatement struct {
	PatientID       PatientID
	PatientName     string
	RequiresReceipt bool
	Sessions        []Session // date-ordered; excludes CANCELLED and THERAPIST_ABSENT
	Total           Money
	Paid            Money
	Pending         Money
}

// MonthlyStatements groups the month's sessions by patient, mirroring
// the practice's monthly billing review. SCHEDULED sessions appear in
// the rows but contribute nothing to the totals until they complete.
func MonthlyStatements(patients []Patient, sessions []Session, year int, month time.Month) []PatientStatement {
	byID := make(map[PatientID]Patient, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}

	statements := make(map[PatientID]*PatientStatement)
	for _, s := range sessions {
		if s.OccursAt.Year() != year || s.OccursAt.Month() != month {
			continue
		}
		if s.Status == StatusCancelled || s.Status == StatusTherapistAbsent || s.Status == StatusUnconfirmed {
			continue
		}

		patient, ok := byID[s.PatientID]
		if !ok {
			continue
		}

		st := statements[s.PatientID]
		if st == nil {
			st = &PatientStatement{
				PatientID:       patient.ID,
				PatientName:     patient.Name,
				RequiresReceipt: patient.RequiresReceipt,
				Total:           ZeroMoney(),
				Paid:            ZeroMoney(),
				Pending:         ZeroMoney(),
			}
			statements[s.PatientID] = st
		}

		st.Sessions = append(st.Sessions, s)
		if s.Status.Billable() {
			st.Total = st.Total.Add(s.ValueSnapshot)
			if s.Paid {
				st.Paid = st.Paid.Add(s.ValueSnapshot)
			} else {
				st.Pending = st.Pending.Add(s.ValueSnapshot)
			}
		}
	}

	result := make([]PatientStatement, 0, len(statements))
	for _, st := range statements {
		sort.Slice(st.Sessions, func(i, j int) bool {
			return st.Sessions[i].OccursAt.Before(st.Sessions[j].OccursAt)
		})
		result = append(result, *st)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PatientName < result[j].PatientName
	})
	return result
}

// Upcoming returns the SCHEDULED sessions at or after now, soonest first.
// Now is injected; see Clock.
func Upcoming(sessions []Session, now time.Time) []Session {
	var upcoming []Session
	for _, s := range sessions {
		if s.Status == StatusScheduled && !s.OccursAt.Before(now) {
			upcoming = append(upcoming, s)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].OccursAt.Before(upcoming[j].OccursAt)
	})
	return upcoming
}
