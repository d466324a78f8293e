/*
generate.go - Idempotent monthly session generation

PURPOSE:
  Orchestrates the recurrence evaluator over the active roster for one
  (year, month) and inserts the due sessions into the store. Safe to run
  repeatedly: the view layer may trigger it on every month render.

IDEMPOTENCE:
  Matching is by (patient, calendar day) only; time-of-day is ignored.
  The engine checks HasSessionOnDay first and additionally treats a
  store-level ErrDuplicateSession as "already exists", so concurrent
  passes over the same month cannot double-book.

FAILURE POLICY:
  A malformed patient record (recurring but no anchor weekday) is
  skipped and counted; the batch continues. Store I/O errors abort the
  pass, which is safe to re-run. There is no batch transaction; partial
  application is tolerated by design.

SEE ALSO:
  - recurrence.go: DueDates
  - store.go: Uniqueness guarantee
*/
package agenda

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// GeneratorConfig carries the time-of-day policy for newly generated
// sessions. The default start time is a policy knob, not a hardcoded fact.
type GeneratorConfig struct {
	SessionHour   int            // default 10
	SessionMinute int            // default 0
	Location      *time.Location // default time.Local
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.SessionHour == 0 && c.SessionMinute == 0 {
		c.SessionHour = 10
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// =============================================================================
// GENERATOR
// =============================================================================

type Generator struct {
	Patients PatientStore
	Sessions SessionStore
	Config   GeneratorConfig
}

func NewGenerator(store Store, cfg GeneratorConfig) *Generator {
	return &Generator{Patients: store, Sessions: store, Config: cfg}
}

// GenerationReport summarizes one generation pass.
type GenerationReport struct {
	Year             int
	Month            time.Month
	Created          int // sessions inserted this pass
	AlreadyScheduled int // due dates skipped because a session existed
	SkippedPatients  int // malformed patient records skipped
}

// GenerateMonth materializes the month's sessions for every active
// recurring patient. New sessions start SCHEDULED and unpaid, with the
// value snapshot copied from the patient's current rate.
func (g *Generator) GenerateMonth(ctx context.Context, year int, month time.Month) (GenerationReport, error) {
	cfg := g.Config.withDefaults()
	report := GenerationReport{Year: year, Month: month}

	roster, err := g.Patients.ListPatients(ctx)
	if err != nil {
		return report, err
	}

	for _, patient := range roster {
		if patient.Status != PatientActive {
			continue
		}
		if patient.Recurrence == RecurrenceSingle {
			continue
		}

		due, err := DueDates(patient, year, month)
		if err != nil {
			// Misconfigured record: skip this patient, keep the batch going.
			report.SkippedPatients++
			continue
		}

		for _, day := range due {
			exists, _, err := g.Sessions.HasSessionOnDay(ctx, patient.ID, day)
			if err != nil {
				return report, err
			}
			if exists {
				report.AlreadyScheduled++
				continue
			}

			occursAt := time.Date(day.Year(), day.Month(), day.Day(),
				cfg.SessionHour, cfg.SessionMinute, 0, 0, cfg.Location)

			_, err = g.Sessions.InsertSession(ctx, Session{
				PatientID:     patient.ID,
				OccursAt:      occursAt,
				Status:        StatusScheduled,
				Paid:          false,
				ValueSnapshot: patient.ValuePerSession,
			})
			if errors.Is(err, ErrDuplicateSession) {
				// Lost the race to a concurrent pass; same outcome.
				report.AlreadyScheduled++
				continue
			}
			if err != nil {
				return report, err
			}
			report.Created++
		}
	}

	return report, nil
}
