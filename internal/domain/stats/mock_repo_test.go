package stats

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/pkg/caldate"
)

type mockDoctor struct {
	id             uuid.UUID
	name           string
	specialization string
}

type mockAdmission struct {
	id         uuid.UUID
	patientID  uuid.UUID
	doctorID   uuid.UUID
	admitted   time.Time
	discharged *time.Time
	rate       float64
	created    time.Time
}

// mockRepo aggregates in Go what the SQL aggregates in the database.
type mockRepo struct {
	doctors    []mockDoctor
	patients   map[uuid.UUID]PatientRef
	admissions []mockAdmission
	bills      map[uuid.UUID][]BillRow

	snapshots  int
	aggregates int
	failWith   error
	// afterAggregate runs once the rows are computed, before they are returned.
	afterAggregate func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]PatientRef),
		bills:    make(map[uuid.UUID][]BillRow),
	}
}

func (m *mockRepo) addDoctor(name string) uuid.UUID {
	id := uuid.New()
	m.doctors = append(m.doctors, mockDoctor{id: id, name: name, specialization: "General"})
	return id
}

func (m *mockRepo) addPatient(name string) uuid.UUID {
	id := uuid.New()
	m.patients[id] = PatientRef{ID: id, Code: "PT-" + id.String()[:4], Name: name}
	return id
}

// admit records an admission; discharged is "" for an active one.
func (m *mockRepo) admit(patientID, doctorID uuid.UUID, admitted, discharged string) {
	a := mockAdmission{
		id:        uuid.New(),
		patientID: patientID,
		doctorID:  doctorID,
		admitted:  date(admitted),
		rate:      1000,
		created:   time.Now().Add(time.Duration(len(m.admissions)) * time.Second),
	}
	if discharged != "" {
		d := date(discharged)
		a.discharged = &d
	}
	m.admissions = append(m.admissions, a)
}

func (m *mockRepo) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	m.snapshots++
	return fn(ctx)
}

func (m *mockRepo) AggregateDoctorWorkload(_ context.Context, since7, since30 time.Time, doctorID *uuid.UUID) ([]WorkloadRow, error) {
	m.aggregates++
	if m.failWith != nil {
		return nil, m.failWith
	}
	docs := append([]mockDoctor(nil), m.doctors...)
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].name < docs[j].name })

	out := []WorkloadRow{}
	for _, d := range docs {
		if doctorID != nil && *doctorID != d.id {
			continue
		}
		w := WorkloadRow{DoctorID: d.id, Name: d.name, Specialization: d.specialization}
		for _, a := range m.admissions {
			if a.doctorID != d.id {
				continue
			}
			w.Total++
			if a.discharged == nil {
				w.Active++
			} else {
				w.Completed++
				w.StayDaysSum += caldate.DaysBetween(a.admitted, *a.discharged)
			}
			if !a.admitted.Before(since7) {
				w.Recent7++
			}
			if !a.admitted.Before(since30) {
				w.Recent30++
			}
			if w.LastAdmission == nil || a.admitted.After(*w.LastAdmission) {
				t := a.admitted
				w.LastAdmission = &t
			}
		}
		out = append(out, w)
	}
	if m.afterAggregate != nil {
		m.afterAggregate()
	}
	return out, nil
}

func (m *mockRepo) GetPatient(_ context.Context, id uuid.UUID) (*PatientRef, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	return &p, nil
}

func (m *mockRepo) ListAdmissionsByPatient(_ context.Context, patientID uuid.UUID) ([]AdmissionRow, error) {
	var list []mockAdmission
	for _, a := range m.admissions {
		if a.patientID == patientID {
			list = append(list, a)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].admitted.Equal(list[j].admitted) {
			return list[i].admitted.After(list[j].admitted)
		}
		return list[i].created.After(list[j].created)
	})

	out := []AdmissionRow{}
	for _, a := range list {
		row := AdmissionRow{
			AdmissionID:   a.id,
			DoctorID:      a.doctorID,
			AdmissionDate: a.admitted,
			DischargeDate: a.discharged,
			Status:        "Admitted",
			Reason:        "Observation",
			RatePerDay:    a.rate,
		}
		for _, d := range m.doctors {
			if d.id == a.doctorID {
				row.DoctorName, row.Specialization = d.name, d.specialization
			}
		}
		if a.discharged != nil {
			row.Status = "Discharged"
			total := float64(caldate.DaysBetween(a.admitted, *a.discharged)+1) * a.rate
			row.TotalCharge = &total
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockRepo) ListBillsByPatient(_ context.Context, patientID uuid.UUID) ([]BillRow, error) {
	return append([]BillRow{}, m.bills[patientID]...), nil
}

func date(s string) time.Time {
	d, err := caldate.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
