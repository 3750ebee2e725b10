package workload

import "github.com/google/uuid"

// DoctorLoad is a roster doctor with the number of patients currently
// admitted under them.
type DoctorLoad struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Active         int       `json:"active_assignments"`
}

type DoctorWithTier struct {
	DoctorLoad
	Tier Tier `json:"tier"`
}

// Order selects how Recommend sorts the roster.
type Order string

const (
	// OrderRoster keeps roster order: doctor name, then id.
	OrderRoster Order = "roster"
	// OrderLoad puts the least loaded doctors first; roster order breaks ties.
	OrderLoad Order = "load"
)

// ParseOrder accepts "", "roster" and "load".
func ParseOrder(s string) (Order, bool) {
	switch Order(s) {
	case "", OrderRoster:
		return OrderRoster, true
	case OrderLoad:
		return OrderLoad, true
	}
	return "", false
}
