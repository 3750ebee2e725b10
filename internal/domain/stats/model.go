// Package stats aggregates admission history into per-doctor, facility-wide
// and per-patient views. Every view is read from one database snapshot.
package stats

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careflow/internal/domain/workload"
)

// Trailing windows for "recent" assignment counts, in calendar days.
const (
	ShortWindowDays = 7
	LongWindowDays  = 30
)

// WorkloadRow is the raw per-doctor aggregate read from the store.
type WorkloadRow struct {
	DoctorID       uuid.UUID
	Name           string
	Specialization string
	Total          int
	Active         int
	Completed      int
	// StayDaysSum is the sum of discharge - admission over completed rows.
	StayDaysSum   int
	Recent7       int
	Recent30      int
	LastAdmission *time.Time
}

type DoctorStats struct {
	DoctorID             uuid.UUID     `json:"doctor_id"`
	Name                 string        `json:"name"`
	Specialization       string        `json:"specialization"`
	TotalAssignments     int           `json:"total_assignments"`
	ActiveAssignments    int           `json:"active_assignments"`
	CompletedAssignments int           `json:"completed_assignments"`
	AverageStayDays      float64       `json:"average_stay_days"`
	HasCompleted         bool          `json:"has_completed"`
	AssignmentsLast7     int           `json:"assignments_last_7_days"`
	AssignmentsLast30    int           `json:"assignments_last_30_days"`
	LastAdmissionDate    *string       `json:"last_admission_date"`
	Tier                 workload.Tier `json:"tier"`
}

type FacilityStats struct {
	AsOf                     string                `json:"as_of"`
	DoctorCount              int                   `json:"doctor_count"`
	TotalAssignments         int                   `json:"total_assignments"`
	ActiveAssignments        int                   `json:"active_assignments"`
	CompletedAssignments     int                   `json:"completed_assignments"`
	AssignmentsLast7         int                   `json:"assignments_last_7_days"`
	AssignmentsLast30        int                   `json:"assignments_last_30_days"`
	AverageAssignmentsPerDoc float64               `json:"average_assignments_per_doctor"`
	AverageStayDays          float64               `json:"average_stay_days"`
	HasCompleted             bool                  `json:"has_completed"`
	TierDistribution         workload.Distribution `json:"tier_distribution"`
	Doctors                  []DoctorStats         `json:"doctors"`
}

// PatientRef identifies the patient a history belongs to.
type PatientRef struct {
	ID   uuid.UUID
	Code string
	Name string
}

// AdmissionRow is one admission of a patient joined with its doctor.
type AdmissionRow struct {
	AdmissionID    uuid.UUID
	DoctorID       uuid.UUID
	DoctorName     string
	Specialization string
	AdmissionDate  time.Time
	DischargeDate  *time.Time
	Status         string
	Reason         string
	RatePerDay     float64
	TotalCharge    *float64
}

// BillRow is a bill with the sum of its payments.
type BillRow struct {
	BillID      uuid.UUID
	Description string
	TotalAmount float64
	Paid        float64
	CreatedAt   time.Time
}

type AssignmentHistory struct {
	AdmissionID    uuid.UUID `json:"admission_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	AdmissionDate  string    `json:"admission_date"`
	DischargeDate  *string   `json:"discharge_date"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	StayDays       int       `json:"stay_days"`
	Ongoing        bool      `json:"ongoing"`
	RatePerDay     float64   `json:"rate_per_day"`
	TotalCharge    *float64  `json:"total_charge"`
}

type BillStatus string

const (
	BillPaid    BillStatus = "paid"
	BillPartial BillStatus = "partial"
	BillPending BillStatus = "pending"
)

// BillStatusOf derives the status of a bill from what has been paid on it.
func BillStatusOf(total, paid float64) BillStatus {
	switch {
	case paid >= total:
		return BillPaid
	case paid > 0:
		return BillPartial
	default:
		return BillPending
	}
}

type BillSummary struct {
	BillID      uuid.UUID  `json:"bill_id"`
	Description string     `json:"description"`
	TotalAmount float64    `json:"total_amount"`
	Paid        float64    `json:"paid"`
	Outstanding float64    `json:"outstanding"`
	Status      BillStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

type PatientHistory struct {
	PatientID        uuid.UUID           `json:"patient_id"`
	PatientCode      string              `json:"patient_code"`
	PatientName      string              `json:"patient_name"`
	Assignments      []AssignmentHistory `json:"assignments"`
	Bills            []BillSummary       `json:"bills"`
	OutstandingTotal float64             `json:"outstanding_total"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// averageStay is the mean stay over completed admissions, 0 when none.
func averageStay(sum, completed int) float64 {
	if completed == 0 {
		return 0
	}
	return round2(float64(sum) / float64(completed))
}
