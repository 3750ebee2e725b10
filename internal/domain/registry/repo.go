package registry

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// WithTx runs fn in one read-write transaction carried by its context.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	LockDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	// CountAdmissions counts admissions of every status referencing the doctor.
	CountAdmissions(ctx context.Context, doctorID uuid.UUID) (int, error)
}
