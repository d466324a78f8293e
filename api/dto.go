/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/psicoagenda/practice-engine/agenda"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PatientDTO represents a patient in API responses.
type PatientDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	BirthDate       string  `json:"birth_date,omitempty"`
	ValuePerSession float64 `json:"value_per_session"`
	Recurrence      string  `json:"recurrence"`
	AnchorWeekday   *int    `json:"anchor_weekday,omitempty"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes,omitempty"`
	RequiresReceipt bool    `json:"requires_receipt"`
}

// SavePatientRequest creates or updates a patient.
type SavePatientRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	BirthDate       string  `json:"birth_date"` // YYYY-MM-DD
	ValuePerSession float64 `json:"value_per_session"`
	Recurrence      string  `json:"recurrence"`
	AnchorWeekday   *int    `json:"anchor_weekday,omitempty"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes"`
	RequiresReceipt bool    `json:"requires_receipt"`
}

// SessionDTO represents a session instance in API responses.
type SessionDTO struct {
	ID            string  `json:"id"`
	PatientID     string  `json:"patient_id"`
	OccursAt      string  `json:"occurs_at"`
	Status        string  `json:"status"`
	Paid          bool    `json:"paid"`
	ValueSnapshot float64 `json:"value_snapshot"`
	Notes         string  `json:"notes,omitempty"`
	ImportedLabel string  `json:"imported_label,omitempty"`
}

// CreateSessionRequest books a single session manually (the path used for
// SINGLE-recurrence patients and ad-hoc extras).
type CreateSessionRequest struct {
	PatientID string `json:"patient_id"`
	OccursAt  string `json:"occurs_at"` // RFC 3339
	Notes     string `json:"notes,omitempty"`
}

// StatusRequest applies one lifecycle transition.
type StatusRequest struct {
	Status string `json:"status"`
}

// PaidRequest sets the payment flag on a billed session.
type PaidRequest struct {
	Paid bool `json:"paid"`
}

// ResolveRequest confirms an imported session against a patient.
type ResolveRequest struct {
	PatientID string `json:"patient_id"`
}

// GenerateRequest triggers monthly generation.
type GenerateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

// GenerationReportDTO summarizes a generation pass.
type GenerationReportDTO struct {
	Year             int `json:"year"`
	Month            int `json:"month"`
	Created          int `json:"created"`
	AlreadyScheduled int `json:"already_scheduled"`
	SkippedPatients  int `json:"skipped_patients"`
}

// ExternalEventDTO is one candidate calendar entry.
type ExternalEventDTO struct {
	Title    string `json:"title"`
	OccursAt string `json:"occurs_at"` // RFC 3339
}

// ImportRequest submits externally sourced events for reconciliation.
type ImportRequest struct {
	Events []ExternalEventDTO `json:"events"`
}

// FeedImportRequest imports from an ICS subscription URL.
type FeedImportRequest struct {
	URL string `json:"url"`
}

// ImportReportDTO summarizes an import run.
type ImportReportDTO struct {
	Imported []SessionDTO `json:"imported"`
	Skipped  int          `json:"skipped"`
	Matched  int          `json:"matched"`
}

// SummaryDTO is the monthly financial summary.
type SummaryDTO struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	Expected       float64 `json:"expected"`
	Received       float64 `json:"received"`
	Pending        float64 `json:"pending"`
	Projected      float64 `json:"projected"`
	SessionsCount  int     `json:"sessions_count"`
	CompletedCount int     `json:"completed_count"`
	AbsentCount    int     `json:"absent_count"`
	ScheduledCount int     `json:"scheduled_count"`
	UnpaidCount    int     `json:"unpaid_count"`
}

// StatementDTO is one patient's monthly billing breakdown.
type StatementDTO struct {
	PatientID       string       `json:"patient_id"`
	PatientName     string       `json:"patient_name"`
	RequiresReceipt bool         `json:"requires_receipt"`
	Sessions        []SessionDTO `json:"sessions"`
	Total           float64      `json:"total"`
	Paid            float64      `json:"paid"`
	Pending         float64      `json:"pending"`
}

// LoadDemoRequest seeds the store with demo data.
type LoadDemoRequest struct {
	Seed int64  `json:"seed,omitempty"`
	Now  string `json:"now,omitempty"` // RFC 3339; defaults to the server clock
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPatientDTO(p agenda.Patient) PatientDTO {
	dto := PatientDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		ValuePerSession: p.ValuePerSession.Float64(),
		Recurrence:      string(p.Recurrence),
		Status:          string(p.Status),
		Notes:           p.Notes,
		RequiresReceipt: p.RequiresReceipt,
	}
	if !p.BirthDate.IsZero() {
		dto.BirthDate = p.BirthDate.Format("2006-01-02")
	}
	if p.AnchorWeekday != nil {
		wd := int(*p.AnchorWeekday)
		dto.AnchorWeekday = &wd
	}
	return dto
}

func toSessionDTO(s agenda.Session) SessionDTO {
	return SessionDTO{
		ID:            string(s.ID),
		PatientID:     string(s.PatientID),
		OccursAt:      s.OccursAt.Format(time.RFC3339),
		Status:        string(s.Status),
		Paid:          s.Paid,
		ValueSnapshot: s.ValueSnapshot.Float64(),
		Notes:         s.Notes,
		ImportedLabel: s.ImportedLabel,
	}
}

func toSessionDTOs(sessions []agenda.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

func toSummaryDTO(s agenda.FinancialSummary) SummaryDTO {
	return SummaryDTO{
		Year:           s.Year,
		Month:          int(s.Month),
		Expected:       s.Expected.Float64(),
		Received:       s.Received.Float64(),
		Pending:        s.Pending.Float64(),
		Projected:      s.Projected.Float64(),
		SessionsCount:  s.SessionsCount,
		CompletedCount: s.CompletedCount,
		AbsentCount:    s.AbsentCount,
		ScheduledCount: s.ScheduledCount,
		UnpaidCount:    s.UnpaidCount,
	}
}

func toStatementDTO(st agenda.PatientStatement) StatementDTO {
	return StatementDTO{
		PatientID:       string(st.PatientID),
		PatientName:     st.PatientName,
		RequiresReceipt: st.RequiresReceipt,
		Sessions:        toSessionDTOs(st.Sessions),
		Total:           st.Total.Float64(),
		Paid:            st.Paid.Float64(),
		Pending:         st.Pending.Float64(),
	}
}
