package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// WithSnapshot runs fn against a single consistent read view.
	WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
	// AggregateDoctorWorkload returns one row per doctor in roster order.
	// Admissions on or after since7 / since30 count as recent. A non-nil
	// doctorID restricts the result to that doctor.
	AggregateDoctorWorkload(ctx context.Context, since7, since30 time.Time, doctorID *uuid.UUID) ([]WorkloadRow, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*PatientRef, error)
	// ListAdmissionsByPatient returns newest admission first.
	ListAdmissionsByPatient(ctx context.Context, patientID uuid.UUID) ([]AdmissionRow, error)
	ListBillsByPatient(ctx context.Context, patientID uuid.UUID) ([]BillRow, error)
}
