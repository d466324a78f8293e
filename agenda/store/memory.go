// Package store provides the in-memory Store implementation.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psicoagenda/practice-engine/agenda"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (tests, demo mode)
// =============================================================================

// Memory keeps the roster and the session book in maps behind one mutex.
// The lock spans every check+insert, which is what makes repeated and
// concurrent generation passes collapse into at most one session per
// (patient, calendar day).
type Memory struct {
	mu       sync.RWMutex
	patients map[agenda.PatientID]agenda.Patient
	sessions map[agenda.SessionID]agenda.Session

	// dayIndex maps (patient, YYYY-MM-DD) to the owning confirmed session.
	// Provisional (UNCONFIRMED) and unmatched sessions are not indexed.
	dayIndex map[dayKey]agenda.SessionID
}

type dayKey struct {
	PatientID agenda.PatientID
	Day       string
}

func NewMemory() *Memory {
	return &Memory{
		patients: make(map[agenda.PatientID]agenda.Patient),
		sessions: make(map[agenda.SessionID]agenda.Session),
		dayIndex: make(map[dayKey]agenda.SessionID),
	}
}

var _ agenda.Store = (*Memory)(nil)

// =============================================================================
// PATIENTS
// =============================================================================

func (m *Memory) ListPatients(_ context.Context) ([]agenda.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]agenda.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) GetPatient(_ context.Context, id agenda.PatientID) (*agenda.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SavePatient(_ context.Context, p agenda.Patient) (agenda.PatientID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = agenda.PatientID(uuid.NewString())
	}
	m.patients[p.ID] = p
	return p.ID, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) ListSessions(_ context.Context) ([]agenda.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotSorted(func(agenda.Session) bool { return true }), nil
}

func (m *Memory) ListSessionsInMonth(_ context.Context, year int, month time.Month) ([]agenda.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotSorted(func(s agenda.Session) bool {
		return s.OccursAt.Year() == year && s.OccursAt.Month() == month
	}), nil
}

func (m *Memory) snapshotSorted(keep func(agenda.Session) bool) []agenda.Session {
	var result []agenda.Session
	for _, s := range m.sessions {
		if keep(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccursAt.Before(result[j].OccursAt) })
	return result
}

func (m *Memory) GetSession(_ context.Context, id agenda.SessionID) (*agenda.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) InsertSession(_ context.Context, s agenda.Session) (agenda.SessionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The store assigns the definitive id; placeholder ids are discarded.
	s.ID = agenda.SessionID(uuid.NewString())

	if indexed(s) {
		k := dayKey{PatientID: s.PatientID, Day: agenda.DayStamp(s.OccursAt)}
		if existing, ok := m.dayIndex[k]; ok {
			return "", &agenda.DuplicateSessionError{
				PatientID:  s.PatientID,
				Day:        k.Day,
				ExistingID: existing,
			}
		}
		m.dayIndex[k] = s.ID
	}

	m.sessions[s.ID] = s
	return s.ID, nil
}

func (m *Memory) UpdateSession(_ context.Context, s agenda.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[s.ID]
	if !ok {
		return agenda.ErrSessionNotFound
	}

	if indexed(old) {
		delete(m.dayIndex, dayKey{PatientID: old.PatientID, Day: agenda.DayStamp(old.OccursAt)})
	}
	if indexed(s) {
		k := dayKey{PatientID: s.PatientID, Day: agenda.DayStamp(s.OccursAt)}
		if existing, taken := m.dayIndex[k]; taken && existing != s.ID {
			// Restore the old index entry; the update is rejected whole.
			if indexed(old) {
				m.dayIndex[dayKey{PatientID: old.PatientID, Day: agenda.DayStamp(old.OccursAt)}] = old.ID
			}
			return &agenda.DuplicateSessionError{PatientID: s.PatientID, Day: k.Day, ExistingID: existing}
		}
		m.dayIndex[k] = s.ID
	}

	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, id agenda.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return agenda.ErrSessionNotFound
	}
	if indexed(s) {
		delete(m.dayIndex, dayKey{PatientID: s.PatientID, Day: agenda.DayStamp(s.OccursAt)})
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) HasSessionOnDay(_ context.Context, patientID agenda.PatientID, day time.Time) (bool, agenda.SessionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stamp := agenda.DayStamp(day)
	if id, ok := m.dayIndex[dayKey{PatientID: patientID, Day: stamp}]; ok {
		return true, id, nil
	}
	// Provisional sessions are not indexed but still occupy the day.
	for id, s := range m.sessions {
		if s.PatientID == patientID && agenda.DayStamp(s.OccursAt) == stamp {
			return true, id, nil
		}
	}
	return false, "", nil
}

// indexed reports whether the session occupies a confirmed (patient, day)
// slot subject to the uniqueness guarantee.
func indexed(s agenda.Session) bool {
	return s.PatientID != agenda.UnmatchedPatient && s.Status != agenda.StatusUnconfirmed
}
