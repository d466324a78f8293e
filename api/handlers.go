/*
handlers.go - HTTP API handlers for the practice engine

PURPOSE:
  Exposes the scheduling and billing engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Patients:
    GET    /api/patients                 List the roster
    POST   /api/patients                 Create patient
    GET    /api/patients/{id}            Get patient details
    PUT    /api/patients/{id}            Update patient

  Sessions:
    GET    /api/sessions?month=YYYY-MM   List sessions for a month
    POST   /api/sessions                 Book a session manually
    GET    /api/sessions/upcoming        Scheduled sessions from now on
    GET    /api/sessions/{id}            Get session details
    DELETE /api/sessions/{id}            Reject an UNCONFIRMED import
    POST   /api/sessions/{id}/status     Apply a lifecycle transition
    POST   /api/sessions/{id}/paid       Set the payment flag
    POST   /api/sessions/{id}/resolve    Confirm an import against a patient

  Engine:
    POST   /api/generate                 Generate a month of sessions
    POST   /api/import                   Reconcile submitted events
    POST   /api/import/feed              Reconcile an ICS feed URL

  Financial:
    GET    /api/financial/summary        Monthly totals
    GET    /api/financial/statements     Per-patient breakdown

  Scenarios:
    POST   /api/scenarios/demo           Load deterministic demo data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, illegal transitions, premature paid toggles
  - 404: Patient or session not found
  - 409: Per-(patient, day) conflicts outside generation
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Identity is owned by the surrounding
  application.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/psicoagenda/practice-engine/agenda"
	"github.com/psicoagenda/practice-engine/calsync"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      agenda.Store
	Generator  *agenda.Generator
	Reconciler *agenda.Reconciler
	Lifecycle  *agenda.Lifecycle
	Clock      agenda.Clock
}

// NewHandler creates a new handler over the given store.
func NewHandler(store agenda.Store, cfg agenda.GeneratorConfig) *Handler {
	return &Handler{
		Store:      store,
		Generator:  agenda.NewGenerator(store, cfg),
		Reconciler: agenda.NewReconciler(store),
		Lifecycle:  agenda.NewLifecycle(store),
		Clock:      agenda.SystemClock{},
	}
}

// =============================================================================
// PATIENT HANDLERS
// =============================================================================

// ListPatients returns the full roster.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Store.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list patients", err)
		return
	}

	dtos := make([]PatientDTO, len(patients))
	for i, p := range patients {
		dtos[i] = toPatientDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPatient returns a single patient.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := agenda.PatientID(chi.URLParam(r, "id"))

	patient, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if patient == nil {
		writeError(w, http.StatusNotFound, "Patient not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(*patient))
}

// CreatePatient creates a new patient.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	h.savePatient(w, r, "")
}

// UpdatePatient replaces an existing patient record.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := agenda.PatientID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Patient not found", nil)
		return
	}
	h.savePatient(w, r, id)
}

func (h *Handler) savePatient(w http.ResponseWriter, r *http.Request, id agenda.PatientID) {
	var req SavePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	patient := agenda.Patient{
		ID:              id,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		ValuePerSession: agenda.NewMoney(req.ValuePerSession),
		Recurrence:      agenda.Recurrence(req.Recurrence),
		Status:          agenda.PatientStatus(req.Status),
		Notes:           req.Notes,
		RequiresReceipt: req.RequiresReceipt,
	}
	if patient.Status == "" {
		patient.Status = agenda.PatientActive
	}
	if req.AnchorWeekday != nil {
		wd := time.Weekday(*req.AnchorWeekday)
		patient.AnchorWeekday = &wd
	}
	if req.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid birth_date format (use YYYY-MM-DD)", err)
			return
		}
		patient.BirthDate = birthDate
	}
	if patient.ValuePerSession.IsNegative() {
		writeError(w, http.StatusBadRequest, "value_per_session must be non-negative", nil)
		return
	}
	if err := patient.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recurrence configuration", err)
		return
	}

	savedID, err := h.Store.SavePatient(r.Context(), patient)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save patient", err)
		return
	}
	patient.ID = savedID

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPatientDTO(patient))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns sessions, optionally scoped to ?month=YYYY-MM.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sessions []agenda.Session
	var err error
	if monthParam := r.URL.Query().Get("month"); monthParam != "" {
		year, month, perr := parseMonth(monthParam)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", perr)
			return
		}
		sessions, err = h.Store.ListSessionsInMonth(ctx, year, month)
	} else {
		sessions, err = h.Store.ListSessions(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// UpcomingSessions returns SCHEDULED sessions at or after now.
func (h *Handler) UpcomingSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(agenda.Upcoming(sessions, h.Clock.Now())))
}

// GetSession returns a single session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := agenda.SessionID(chi.URLParam(r, "id"))

	session, err := h.Store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// CreateSession books a single session manually. The value snapshot is
// taken from the patient's current rate, exactly as generation does.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	occursAt, err := time.Parse(time.RFC3339, req.OccursAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid occurs_at format (use RFC 3339)", err)
		return
	}

	ctx := r.Context()
	patient, err := h.Store.GetPatient(ctx, agenda.PatientID(req.PatientID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if patient == nil {
		writeError(w, http.StatusNotFound, "Patient not found", nil)
		return
	}

	session := agenda.Session{
		PatientID:     patient.ID,
		OccursAt:      occursAt,
		Status:        agenda.StatusScheduled,
		Paid:          false,
		ValueSnapshot: patient.ValuePerSession,
		Notes:         req.Notes,
	}
	id, err := h.Store.InsertSession(ctx, session)
	if err != nil {
		writeEngineError(w, "Failed to book session", err)
		return
	}
	session.ID = id
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// RejectSession discards an UNCONFIRMED import.
func (h *Handler) RejectSession(w http.ResponseWriter, r *http.Request) {
	id := agenda.SessionID(chi.URLParam(r, "id"))
	if err := h.Reconciler.Reject(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to reject session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeStatus applies one lifecycle transition.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := agenda.SessionID(chi.URLParam(r, "id"))

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Lifecycle.ChangeStatus(r.Context(), id, agenda.SessionStatus(req.Status)); err != nil {
		writeEngineError(w, "Failed to change status", err)
		return
	}
	h.respondWithSession(w, r, id)
}

// SetPaid sets the payment flag on a billed session.
func (h *Handler) SetPaid(w http.ResponseWriter, r *http.Request) {
	id := agenda.SessionID(chi.URLParam(r, "id"))

	var req PaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Lifecycle.SetPaid(r.Context(), id, req.Paid); err != nil {
		writeEngineError(w, "Failed to set paid", err)
		return
	}
	h.respondWithSession(w, r, id)
}

// ResolveSession confirms an imported session against a patient.
func (h *Handler) ResolveSession(w http.ResponseWriter, r *http.Request) {
	id := agenda.SessionID(chi.URLParam(r, "id"))

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Reconciler.Resolve(r.Context(), id, agenda.PatientID(req.PatientID)); err != nil {
		writeEngineError(w, "Failed to resolve session", err)
		return
	}
	h.respondWithSession(w, r, id)
}

func (h *Handler) respondWithSession(w http.ResponseWriter, r *http.Request, id agenda.SessionID) {
	session, err := h.Store.GetSession(r.Context(), id)
	if err != nil || session == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// =============================================================================
// ENGINE HANDLERS
// =============================================================================

// Generate materializes one month of sessions for the active roster.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "year and month (1-12) are required", nil)
		return
	}

	report, err := h.Generator.GenerateMonth(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Generation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, GenerationReportDTO{
		Year:             report.Year,
		Month:            int(report.Month),
		Created:          report.Created,
		AlreadyScheduled: report.AlreadyScheduled,
		SkippedPatients:  report.SkippedPatients,
	})
}

// Import reconciles events submitted in the request body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	events := make([]agenda.ExternalEvent, 0, len(req.Events))
	for _, e := range req.Events {
		occursAt, err := time.Parse(time.RFC3339, e.OccursAt)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid occurs_at for event %q (use RFC 3339)", e.Title), err)
			return
		}
		events = append(events, agenda.ExternalEvent{Title: e.Title, OccursAt: occursAt})
	}

	h.runImport(w, r, events)
}

// ImportFeed fetches an ICS subscription and reconciles its events.
func (h *Handler) ImportFeed(w http.ResponseWriter, r *http.Request) {
	var req FeedImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required", nil)
		return
	}

	events, err := calsync.NewFeed(req.URL).Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch calendar feed", err)
		return
	}

	h.runImport(w, r, events)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, events []agenda.ExternalEvent) {
	report, err := h.Reconciler.ImportExternalEvents(r.Context(), events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ImportReportDTO{
		Imported: toSessionDTOs(report.Imported),
		Skipped:  report.Skipped,
		Matched:  report.Matched,
	})
}

// =============================================================================
// FINANCIAL HANDLERS
// =============================================================================

// FinancialSummary returns the month's totals, optionally for one patient.
func (h *Handler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	sessions, err := h.Store.ListSessionsInMonth(r.Context(), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	var patientID *agenda.PatientID
	if p := r.URL.Query().Get("patient_id"); p != "" {
		id := agenda.PatientID(p)
		patientID = &id
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(agenda.Summarize(sessions, year, month, patientID)))
}

// FinancialStatements returns the per-patient monthly breakdown.
func (h *Handler) FinancialStatements(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	ctx := r.Context()
	patients, err := h.Store.ListPatients(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list patients", err)
		return
	}
	sessions, err := h.Store.ListSessionsInMonth(ctx, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	statements := agenda.MonthlyStatements(patients, sessions, year, month)
	dtos := make([]StatementDTO, len(statements))
	for i, st := range statements {
		dtos[i] = toStatementDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMonth(value string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case agenda.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case agenda.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case agenda.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
