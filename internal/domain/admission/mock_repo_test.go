package admission

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careflow/internal/apperr"
)

// mockRepo is an in-memory store with the same guarantees the Postgres
// schema gives: exclusive row locks held until the transaction ends, a
// unique active admission per patient, and rollback of every write made by
// a failed transaction.
type mockRepo struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*sync.Mutex
	doctors    map[uuid.UUID]bool
	admissions map[uuid.UUID]*Admission
	admLocks   map[uuid.UUID]*sync.Mutex
	names      map[uuid.UUID]string

	// noLocks disables row locks and the pre-insert check so that only the
	// unique index stands between concurrent admits.
	noLocks   bool
	failAfter error // returned by CountActiveAdmissions, after the insert
	inserts   int
	snapshots int
}

type mockTxKey struct{}

type mockTx struct {
	unlock []func()
	undo   []func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients:   make(map[uuid.UUID]*sync.Mutex),
		doctors:    make(map[uuid.UUID]bool),
		admissions: make(map[uuid.UUID]*Admission),
		admLocks:   make(map[uuid.UUID]*sync.Mutex),
		names:      make(map[uuid.UUID]string),
	}
}

func (m *mockRepo) addPatient(name string) uuid.UUID {
	id := uuid.New()
	m.patients[id] = &sync.Mutex{}
	m.names[id] = name
	return id
}

func (m *mockRepo) addDoctor() uuid.UUID {
	id := uuid.New()
	m.doctors[id] = true
	return id
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		return fn(ctx)
	}
	tx := &mockTx{}
	err := fn(context.WithValue(ctx, mockTxKey{}, tx))
	if err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
	}
	for i := len(tx.unlock) - 1; i >= 0; i-- {
		tx.unlock[i]()
	}
	return err
}

func (m *mockRepo) hold(ctx context.Context, lock *sync.Mutex) {
	if m.noLocks {
		return
	}
	lock.Lock()
	if tx, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		tx.unlock = append(tx.unlock, lock.Unlock)
		return
	}
	lock.Unlock()
}

func (m *mockRepo) record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (m *mockRepo) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	m.mu.Lock()
	lock, ok := m.patients[patientID]
	m.mu.Unlock()
	if !ok {
		return apperr.NotFound("patient", patientID.String())
	}
	m.hold(ctx, lock)
	return nil
}

func (m *mockRepo) LockDoctor(_ context.Context, doctorID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.doctors[doctorID] {
		return apperr.NotFound("doctor", doctorID.String())
	}
	return nil
}

func (m *mockRepo) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.snapshots++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *mockRepo) DoctorExists(_ context.Context, doctorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doctors[doctorID], nil
}

func (m *mockRepo) HasActiveAdmission(_ context.Context, patientID uuid.UUID) (bool, error) {
	if m.noLocks {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admissions {
		if a.PatientID == patientID && a.Status == StatusAdmitted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) CountActiveAdmissions(_ context.Context, doctorID uuid.UUID) (int, error) {
	if m.failAfter != nil {
		return 0, m.failAfter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.admissions {
		if a.DoctorID == doctorID && a.Status == StatusAdmitted {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Insert(ctx context.Context, a *Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.admissions {
		if existing.PatientID == a.PatientID && existing.Status == StatusAdmitted {
			return alreadyAdmitted(a.PatientID)
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	m.admissions[a.ID] = &stored
	m.admLocks[a.ID] = &sync.Mutex{}
	m.inserts++
	m.record(ctx, func() { delete(m.admissions, a.ID) })
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admissions[id]
	if !ok {
		return nil, apperr.NotFound("admission", id.String())
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) LockByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	m.mu.Lock()
	lock, ok := m.admLocks[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("admission", id.String())
	}
	m.hold(ctx, lock)
	return m.GetByID(ctx, id)
}

func (m *mockRepo) UpdateOnDischarge(ctx context.Context, id uuid.UUID, dischargeDate time.Time, totalCharge float64, notes *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admissions[id]
	if !ok || a.Status != StatusAdmitted {
		return false, nil
	}
	before := *a
	a.Status = StatusDischarged
	a.DischargeDate = &dischargeDate
	a.TotalCharge = &totalCharge
	a.DischargeNotes = notes
	m.record(ctx, func() { *m.admissions[id] = before })
	return true, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f Filter, limit, offset int) ([]*Assignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Assignment
	for _, a := range m.admissions {
		if a.DoctorID != doctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.From != nil && a.AdmissionDate.Before(*f.From) {
			continue
		}
		if f.To != nil && a.AdmissionDate.After(*f.To) {
			continue
		}
		cp := *a
		all = append(all, &Assignment{Admission: &cp, PatientName: m.names[a.PatientID]})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].AdmissionDate.Equal(all[j].AdmissionDate) {
			return all[i].AdmissionDate.After(all[j].AdmissionDate)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) activeFor(patientID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.admissions {
		if a.PatientID == patientID && a.Status == StatusAdmitted {
			n++
		}
	}
	return n
}

type recordingInvalidator struct {
	mu      sync.Mutex
	doctors []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, doctorID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors = append(r.doctors, doctorID)
}
