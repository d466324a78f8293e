/*
Package agenda provides the core scheduling and billing engine for a
clinical practice.

PURPOSE:
  This package contains the domain types and algorithms for a recurring
  appointment book: materializing a month of session instances from each
  patient's recurrence rule, reconciling externally imported calendar
  events against the patient roster, and deriving financial summaries
  from the per-session payment state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - Patient: A scheduling/billing subject with a recurrence rule
  - Session: One concrete scheduled occurrence
  - ExternalEvent: A calendar entry imported from a third-party agenda

DESIGN PRINCIPLES:
  1. Precision: Money uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs and closed enums for statuses
  3. Snapshots: A session freezes its charge at creation time; later rate
     changes never rewrite history
  4. Explicit state: the engine operates on stores passed in, never on
     ambient globals

SEE ALSO:
  - recurrence.go: Due-date evaluation per recurrence rule
  - generate.go: Idempotent monthly generation
  - reconcile.go: External calendar reconciliation
  - lifecycle.go: Session status state machine
  - summary.go: Financial aggregation
*/
package agenda

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount (session rates, snapshots, aggregates)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func MoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(other Money) Money  { return Money{Value: m.Value.Add(other.Value)} }
func (m Money) Sub(other Money) Money  { return Money{Value: m.Value.Sub(other.Value)} }
func (m Money) Equal(other Money) bool { return m.Value.Equal(other.Value) }
func (m Money) IsZero() bool           { return m.Value.IsZero() }
func (m Money) IsNegative() bool       { return m.Value.IsNegative() }
func (m Money) Float64() float64       { f, _ := m.Value.Float64(); return f }
func (m Money) String() string         { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PatientID string
type SessionID string

// UnmatchedPatient is the sentinel owner for imported sessions that could
// not be matched to a roster patient. Resolution assigns the real owner.
const UnmatchedPatient PatientID = "unmatched"

// =============================================================================
// PATIENT - A billing/scheduling subject
// =============================================================================

type Recurrence string

const (
	RecurrenceWeekly   Recurrence = "WEEKLY"
	RecurrenceBiweekly Recurrence = "BIWEEKLY"
	RecurrenceMonthly  Recurrence = "MONTHLY"
	RecurrenceSingle   Recurrence = "SINGLE"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "ACTIVE"
	PatientPaused   PatientStatus = "PAUSED"
	PatientArchived PatientStatus = "ARCHIVED"
)

// Patient holds the recurrence configuration and current rate for one
// patient. AnchorWeekday is required unless Recurrence is SINGLE; the
// weekday numbering follows time.Weekday (Sunday = 0).
type Patient struct {
	ID              PatientID
	Name            string
	Email           string
	Phone           string
	BirthDate       time.Time
	ValuePerSession Money
	Recurrence      Recurrence
	AnchorWeekday   *time.Weekday
	Status          PatientStatus
	Notes           string
	RequiresReceipt bool
}

// Validate checks the recurrence invariant: AnchorWeekday is defined iff
// Recurrence != SINGLE.
func (p Patient) Validate() error {
	if p.Recurrence == RecurrenceSingle {
		return nil
	}
	if p.AnchorWeekday == nil {
		return &ConfigurationError{PatientID: p.ID, Reason: "recurrence requires anchor weekday"}
	}
	if *p.AnchorWeekday < time.Sunday || *p.AnchorWeekday > time.Saturday {
		return &ConfigurationError{PatientID: p.ID, Reason: "anchor weekday out of range"}
	}
	return nil
}

// =============================================================================
// SESSION - One concrete scheduled occurrence
// =============================================================================

type SessionStatus string

const (
	StatusScheduled       SessionStatus = "SCHEDULED"
	StatusCompleted       SessionStatus = "COMPLETED"
	StatusPatientAbsent   SessionStatus = "PATIENT_ABSENT"
	StatusTherapistAbsent SessionStatus = "THERAPIST_ABSENT"
	StatusCancelled       SessionStatus = "CANCELLED"
	StatusUnconfirmed     SessionStatus = "UNCONFIRMED"
)

// Billable reports whether the status contributes to expected revenue.
// CANCELLED and THERAPIST_ABSENT never bill; SCHEDULED is only projected.
func (s SessionStatus) Billable() bool {
	return s == StatusCompleted || s == StatusPatientAbsent
}

// Session is a single appointment instance. ValueSnapshot is frozen at
// creation time and is never updated when the patient's rate changes.
// ImportedLabel is set only for sessions born from external reconciliation.
type Session struct {
	ID            SessionID
	PatientID     PatientID
	OccursAt      time.Time
	Status        SessionStatus
	Paid          bool
	ValueSnapshot Money
	Notes         string
	ImportedLabel string
}

// DayStamp returns the calendar-day component of a time in YYYY-MM-DD form.
// Generation idempotence matches on this day key only; time-of-day is ignored.
func DayStamp(t time.Time) string {
	return t.Format("2006-01-02")
}

// =============================================================================
// EXTERNAL EVENT - Calendar entry from a third-party agenda
// =============================================================================

// ExternalEvent is the narrow contract with the external-calendar
// collaborator: a display title and a point in time, nothing more.
type ExternalEvent struct {
	Title    string
	OccursAt time.Time
}

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" for past/future comparisons. The generation engine
// itself is purely date-driven and never consults it; demo data and
// dashboard-style listings do.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used in tests and for
// deterministic demo data.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
