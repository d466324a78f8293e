/*
scenarios.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates the store with a realistic practice: a roster of patients
	across every recurrence type, a generated current month, and a spread
	of past-session statuses and payments so the financial views have
	something to show.

HOW THE DEMO WORKS:
 1. Seed a deterministic RNG (same seed, same practice)
 2. Create ~20 patients with mixed recurrences and rates
 3. Generate the current month's sessions
 4. Mark sessions before "now" as completed/absent/cancelled
 5. Mark a share of billable sessions as paid

DETERMINISM:

	The caller can pin both the RNG seed and "now" in the request body,
	which makes the loaded state fully reproducible. Handy for demos and
	for API tests that assert on totals.

USAGE VIA API:

	POST /api/scenarios/demo
	{"seed": 42, "now": "2026-03-15T12:00:00Z"}

NOTE:

	The loader only adds data. Point it at a fresh database for a clean
	demo environment.

SEE ALSO:
  - handlers.go: Error helpers
  - agenda/generate.go: Monthly generation used in step 3
*/
package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/psicoagenda/practice-engine/agenda"
)

// =============================================================================
// DEMO ROSTER
// =============================================================================

var demoFirstNames = []string{
	"Ana", "Bruno", "Carla", "Diego", "Elena", "Felipe", "Gabriela",
	"Henrique", "Isabela", "João", "Larissa", "Marcos", "Natália",
	"Otávio", "Patrícia", "Rafael", "Sofia", "Thiago", "Vitória", "William",
}

var demoLastNames = []string{
	"Silva", "Santos", "Oliveira", "Souza", "Costa", "Pereira", "Almeida",
	"Ferreira", "Rodrigues", "Lima", "Carvalho", "Gomes", "Martins",
	"Araújo", "Ribeiro", "Barbosa", "Rocha", "Dias", "Moreira", "Nunes",
}

// LoadDemo seeds the store with a demo practice.
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if r.Body != nil {
		// An empty body is fine, defaults apply.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := h.Clock.Now()
	if req.Now != "" {
		parsed, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid now format (use RFC 3339)", err)
			return
		}
		now = parsed
	}
	seed := req.Seed
	if seed == 0 {
		seed = now.UnixNano()
	}

	report, err := h.loadDemoData(r.Context(), rand.New(rand.NewSource(seed)), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DemoReport summarizes what the loader created.
type DemoReport struct {
	Patients         int `json:"patients"`
	Created          int `json:"created"`
	AlreadyScheduled int `json:"already_scheduled"`
	PastUpdated      int `json:"past_updated"`
}

func (h *Handler) loadDemoData(ctx context.Context, rng *rand.Rand, now time.Time) (DemoReport, error) {
	var report DemoReport

	for i, first := range demoFirstNames {
		recurrence := agenda.RecurrenceWeekly
		if i < 3 {
			recurrence = agenda.RecurrenceBiweekly
		} else if i == len(demoFirstNames)-1 {
			recurrence = agenda.RecurrenceMonthly
		}

		weekday := time.Weekday((i % 5) + 1) // Monday through Friday
		patient := agenda.Patient{
			Name:            first + " " + demoLastNames[i],
			ValuePerSession: agenda.MoneyFromInt(150 + rng.Intn(5)*25),
			Recurrence:      recurrence,
			AnchorWeekday:   &weekday,
			Status:          agenda.PatientActive,
			RequiresReceipt: i%3 == 0,
		}
		if _, err := h.Store.SavePatient(ctx, patient); err != nil {
			return report, err
		}
		report.Patients++
	}

	genReport, err := h.Generator.GenerateMonth(ctx, now.Year(), now.Month())
	if err != nil {
		return report, err
	}
	report.Created = genReport.Created
	report.AlreadyScheduled = genReport.AlreadyScheduled

	updated, err := h.agePastSessions(ctx, rng, now)
	if err != nil {
		return report, err
	}
	report.PastUpdated = updated
	return report, nil
}

// agePastSessions gives sessions before "now" a settled status and a
// plausible payment state.
func (h *Handler) agePastSessions(ctx context.Context, rng *rand.Rand, now time.Time) (int, error) {
	sessions, err := h.Store.ListSessionsInMonth(ctx, now.Year(), now.Month())
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, s := range sessions {
		if !s.OccursAt.Before(now) || s.Status != agenda.StatusScheduled {
			continue
		}

		// Most past sessions happened. A few no-shows and cancellations.
		switch roll := rng.Intn(10); {
		case roll < 7:
			s.Status = agenda.StatusCompleted
		case roll < 8:
			s.Status = agenda.StatusPatientAbsent
		case roll < 9:
			s.Status = agenda.StatusTherapistAbsent
		default:
			s.Status = agenda.StatusCancelled
		}
		if s.Status.Billable() && rng.Intn(2) == 0 {
			s.Paid = true
		}
		if err := h.Store.UpdateSession(ctx, s); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
