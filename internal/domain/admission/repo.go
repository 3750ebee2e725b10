package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the admission side of the record store. Methods called from
// inside WithTx run on that transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithSnapshot runs fn against a single consistent read view.
	WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error

	// LockPatient and LockDoctor return a NotFoundError when the row is
	// missing. The patient lock is exclusive and serializes admits of the
	// same patient; the doctor lock is shared and only pins the row.
	LockPatient(ctx context.Context, patientID uuid.UUID) error
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)

	HasActiveAdmission(ctx context.Context, patientID uuid.UUID) (bool, error)
	CountActiveAdmissions(ctx context.Context, doctorID uuid.UUID) (int, error)

	// Insert reports an already-admitted ConflictError when the patient
	// already has an active admission.
	Insert(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	LockByID(ctx context.Context, id uuid.UUID) (*Admission, error)

	// UpdateOnDischarge closes the admission only if it is still Admitted
	// and reports whether it did.
	UpdateOnDischarge(ctx context.Context, id uuid.UUID, dischargeDate time.Time, totalCharge float64, notes *string) (bool, error)

	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f Filter, limit, offset int) ([]*Assignment, int, error)
}
