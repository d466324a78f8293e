/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements agenda.PatientStore and agenda.SessionStore on SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  patients: The roster, including recurrence configuration
  sessions: Concrete appointment instances with frozen value snapshots

UNIQUENESS ENFORCEMENT:
  The per-(patient, calendar day) guarantee is a partial unique index on
  (patient_id, substr(occurs_at, 1, 10)) covering owned, confirmed
  sessions. The day component is the literal prefix of the stored
  RFC 3339 timestamp, so matching ignores time-of-day without timezone
  conversion surprises. A violated index surfaces as
  agenda.ErrDuplicateSession, which the generation engine treats as
  "already exists, skip".

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of the driver; the unique
  index closes the remaining check-then-insert window between processes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/practice.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - agenda/store.go: Interface definitions
  - agenda/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/psicoagenda/practice-engine/agenda"
)

// Store implements both storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ agenda.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Patients (the roster)
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		birth_date TEXT,
		value_per_session TEXT NOT NULL,
		recurrence TEXT NOT NULL,
		anchor_weekday INTEGER,
		status TEXT NOT NULL,
		notes TEXT,
		requires_receipt BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_patients_status
		ON patients(status);
	CREATE INDEX IF NOT EXISTS idx_patients_name
		ON patients(name);

	-- Sessions (appointment instances)
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		occurs_at TEXT NOT NULL,
		status TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		value_snapshot TEXT NOT NULL,
		notes TEXT,
		imported_label TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_patient
		ON sessions(patient_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_occurs_at
		ON sessions(occurs_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status
		ON sessions(status);

	-- CRITICAL: at most one owned, confirmed session per patient per day.
	-- Provisional imports (UNCONFIRMED) and the 'unmatched' sentinel are
	-- exempt until an operator resolves them.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_patient_day
		ON sessions(patient_id, substr(occurs_at, 1, 10))
		WHERE patient_id != 'unmatched' AND status != 'UNCONFIRMED';
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PATIENTS
// =============================================================================

func (s *Store) ListPatients(ctx context.Context) ([]agenda.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, birth_date, value_per_session,
		       recurrence, anchor_weekday, status, notes, requires_receipt
		FROM patients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []agenda.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (s *Store) GetPatient(ctx context.Context, id agenda.PatientID) (*agenda.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, birth_date, value_per_session,
		       recurrence, anchor_weekday, status, notes, requires_receipt
		FROM patients WHERE id = ?`, string(id))

	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SavePatient(ctx context.Context, p agenda.Patient) (agenda.PatientID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = agenda.PatientID(uuid.NewString())
	}

	var anchor sql.NullInt64
	if p.AnchorWeekday != nil {
		anchor = sql.NullInt64{Int64: int64(*p.AnchorWeekday), Valid: true}
	}
	var birthDate string
	if !p.BirthDate.IsZero() {
		birthDate = p.BirthDate.Format("2006-01-02")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients
			(id, name, email, phone, birth_date, value_per_session,
			 recurrence, anchor_weekday, status, notes, requires_receipt,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			birth_date = excluded.birth_date,
			value_per_session = excluded.value_per_session,
			recurrence = excluded.recurrence,
			anchor_weekday = excluded.anchor_weekday,
			status = excluded.status,
			notes = excluded.notes,
			requires_receipt = excluded.requires_receipt,
			updated_at = excluded.updated_at`,
		string(p.ID), p.Name, p.Email, p.Phone, birthDate,
		p.ValuePerSession.Value.String(), string(p.Recurrence), anchor,
		string(p.Status), p.Notes, p.RequiresReceipt, now, now)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

const sessionColumns = `id, patient_id, occurs_at, status, paid, value_snapshot, notes, imported_label`

func (s *Store) ListSessions(ctx context.Context) ([]agenda.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions ORDER BY occurs_at`)
}

func (s *Store) ListSessionsInMonth(ctx context.Context, year int, month time.Month) ([]agenda.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := fmt.Sprintf("%04d-%02d", year, int(month))
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE substr(occurs_at, 1, 7) = ?
		ORDER BY occurs_at`, prefix)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]agenda.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []agenda.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, id agenda.SessionID) (*agenda.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) InsertSession(ctx context.Context, session agenda.Session) (agenda.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The store assigns the definitive id; placeholder ids are discarded.
	session.ID = agenda.SessionID(uuid.NewString())
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
			(id, patient_id, occurs_at, status, paid, value_snapshot,
			 notes, imported_label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(session.ID), string(session.PatientID),
		session.OccursAt.Format(time.RFC3339), string(session.Status),
		session.Paid, session.ValueSnapshot.Value.String(),
		session.Notes, session.ImportedLabel, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", &agenda.DuplicateSessionError{
				PatientID: session.PatientID,
				Day:       agenda.DayStamp(session.OccursAt),
			}
		}
		return "", err
	}
	return session.ID, nil
}

func (s *Store) UpdateSession(ctx context.Context, session agenda.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			patient_id = ?, occurs_at = ?, status = ?, paid = ?,
			value_snapshot = ?, notes = ?, imported_label = ?, updated_at = ?
		WHERE id = ?`,
		string(session.PatientID), session.OccursAt.Format(time.RFC3339),
		string(session.Status), session.Paid,
		session.ValueSnapshot.Value.String(), session.Notes,
		session.ImportedLabel, now, string(session.ID))
	if err != nil {
		if isUniqueViolation(err) {
			return &agenda.DuplicateSessionError{
				PatientID: session.PatientID,
				Day:       agenda.DayStamp(session.OccursAt),
			}
		}
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return agenda.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id agenda.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return agenda.ErrSessionNotFound
	}
	return nil
}

func (s *Store) HasSessionOnDay(ctx context.Context, patientID agenda.PatientID, day time.Time) (bool, agenda.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sessions
		WHERE patient_id = ? AND substr(occurs_at, 1, 10) = ?
		LIMIT 1`, string(patientID), agenda.DayStamp(day)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, agenda.SessionID(id), nil
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (agenda.Patient, error) {
	var p agenda.Patient
	var id, name, recurrence, status string
	var email, phone, birthDate, notes sql.NullString
	var value string
	var anchor sql.NullInt64
	var requiresReceipt bool

	err := row.Scan(&id, &name, &email, &phone, &birthDate, &value,
		&recurrence, &anchor, &status, &notes, &requiresReceipt)
	if err != nil {
		return p, err
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return p, fmt.Errorf("patient %s: bad rate %q: %w", id, value, err)
	}

	p = agenda.Patient{
		ID:              agenda.PatientID(id),
		Name:            name,
		Email:           email.String,
		Phone:           phone.String,
		ValuePerSession: agenda.Money{Value: rate},
		Recurrence:      agenda.Recurrence(recurrence),
		Status:          agenda.PatientStatus(status),
		Notes:           notes.String,
		RequiresReceipt: requiresReceipt,
	}
	if birthDate.Valid && birthDate.String != "" {
		if t, err := time.Parse("2006-01-02", birthDate.String); err == nil {
			p.BirthDate = t
		}
	}
	if anchor.Valid {
		wd := time.Weekday(anchor.Int64)
		p.AnchorWeekday = &wd
	}
	return p, nil
}

func scanSession(row rowScanner) (agenda.Session, error) {
	var s agenda.Session
	var id, patientID, occursAt, status string
	var notes, importedLabel sql.NullString
	var value string
	var paid bool

	err := row.Scan(&id, &patientID, &occursAt, &status, &paid, &value, &notes, &importedLabel)
	if err != nil {
		return s, err
	}

	at, err := time.Parse(time.RFC3339, occursAt)
	if err != nil {
		return s, fmt.Errorf("session %s: bad timestamp %q: %w", id, occursAt, err)
	}
	snapshot, err := decimal.NewFromString(value)
	if err != nil {
		return s, fmt.Errorf("session %s: bad snapshot %q: %w", id, value, err)
	}

	return agenda.Session{
		ID:            agenda.SessionID(id),
		PatientID:     agenda.PatientID(patientID),
		OccursAt:      at,
		Status:        agenda.SessionStatus(status),
		Paid:          paid,
		ValueSnapshot: agenda.Money{Value: snapshot},
		Notes:         notes.String,
		ImportedLabel: importedLabel.String,
	}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
