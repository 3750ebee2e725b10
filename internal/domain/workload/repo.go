package workload

import "context"

type Repository interface {
	// DoctorLoads returns every roster doctor, ordered by name then id, with
	// their active admission count. Doctors with no admissions have 0.
	DoctorLoads(ctx context.Context) ([]DoctorLoad, error)
}
