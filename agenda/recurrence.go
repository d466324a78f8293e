/*
recurrence.go - Recurrence rule evaluation

PURPOSE:
  Pure date arithmetic: given a patient's recurrence configuration and a
  target month, compute the ordered calendar dates on which a session is
  due. No side effects, no clock reads.

RULES:
  WEEKLY:   every date in the month falling on the anchor weekday
  BIWEEKLY: the 1st, 3rd, 5th... occurrence of the anchor weekday,
            counting from the first occurrence in the month
  MONTHLY:  only the first occurrence of the anchor weekday
  SINGLE:   never evaluated here; single-visit patients are booked manually

BIWEEKLY CADENCE:
  The alternation restarts at every month boundary instead of tracking a
  continuous global parity. A patient's "on" week can therefore shift
  across months (the last occurrence of month N and the first of month
  N+1 may both land "on"). Preserved intentionally; see DESIGN.md.
*/
package agenda

import "time"

// DueDates returns the ordered dates in (year, month) on which a session
// is due for the patient. Dates are UTC midnights; the generation engine
// applies its own time-of-day policy on top.
//
// Callers filter SINGLE patients out beforehand; a SINGLE patient or a
// missing anchor weekday yields a ConfigurationError.
func DueDates(p Patient, year int, month time.Month) ([]time.Time, error) {
	if p.Recurrence == RecurrenceSingle {
		return nil, &ConfigurationError{PatientID: p.ID, Reason: "single-visit patients have no due dates"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	occurrences := anchorDates(year, month, *p.AnchorWeekday)

	switch p.Recurrence {
	case RecurrenceWeekly:
		return occurrences, nil

	case RecurrenceBiweekly:
		var due []time.Time
		for i, d := range occurrences {
			if i%2 == 0 {
				due = append(due, d)
			}
		}
		return due, nil

	case RecurrenceMonthly:
		return occurrences[:1], nil

	default:
		return nil, &ConfigurationError{PatientID: p.ID, Reason: "unknown recurrence " + string(p.Recurrence)}
	}
}

// anchorDates enumerates every date in (year, month) whose weekday equals
// the anchor, in ascending order. Every weekday occurs at least four times
// in any month, so the result is never empty.
func anchorDates(year int, month time.Month, anchor time.Weekday) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	offset := (int(anchor) - int(first.Weekday()) + 7) % 7
	current := first.AddDate(0, 0, offset)

	var dates []time.Time
	for current.Month() == month {
		dates = append(dates, current)
		current = current.AddDate(0, 0, 7)
	}
	return dates
}
