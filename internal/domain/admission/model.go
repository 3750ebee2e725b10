package admission

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careflow/pkg/caldate"
)

type Status string

const (
	StatusAdmitted   Status = "Admitted"
	StatusDischarged Status = "Discharged"
)

// Admission is one stay of a patient under a doctor. Dates are calendar
// dates at UTC midnight (see caldate). RatePerDay is fixed at admission and
// never changes; TotalCharge is set exactly once, at discharge.
type Admission struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	AdmissionDate  time.Time
	DischargeDate  *time.Time
	Reason         string
	Status         Status
	RatePerDay     float64
	TotalCharge    *float64
	DischargeNotes *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type admissionJSON struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	AdmissionDate  string    `json:"admission_date"`
	DischargeDate  *string   `json:"discharge_date"`
	Reason         string    `json:"reason"`
	Status         Status    `json:"status"`
	RatePerDay     float64   `json:"rate_per_day"`
	TotalCharge    *float64  `json:"total_charge"`
	DischargeNotes *string   `json:"discharge_notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *Admission) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.view())
}

func (a *Admission) view() admissionJSON {
	out := admissionJSON{
		ID:             a.ID,
		PatientID:      a.PatientID,
		DoctorID:       a.DoctorID,
		AdmissionDate:  caldate.Format(a.AdmissionDate),
		Reason:         a.Reason,
		Status:         a.Status,
		RatePerDay:     a.RatePerDay,
		TotalCharge:    a.TotalCharge,
		DischargeNotes: a.DischargeNotes,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.DischargeDate != nil {
		d := caldate.Format(*a.DischargeDate)
		out.DischargeDate = &d
	}
	return out
}

// Assignment is an admission as listed on a doctor's worklist.
type Assignment struct {
	*Admission
	PatientName string
	PatientCode string
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		admissionJSON
		PatientName string `json:"patient_name"`
		PatientCode string `json:"patient_code"`
	}{a.Admission.view(), a.PatientName, a.PatientCode})
}

type AdmitRequest struct {
	PatientID        string  `json:"patient_id" validate:"required,uuid"`
	DoctorID         string  `json:"doctor_id" validate:"required,uuid"`
	AdmissionDate    string  `json:"admission_date" validate:"required,datetime=2006-01-02,notfuture"`
	Reason           string  `json:"reason" validate:"required,notblank,max=1000"`
	RoomChargePerDay float64 `json:"room_charge_per_day" validate:"gte=0,lte=1000000,cents"`
}

type DischargeRequest struct {
	DischargeDate string `json:"discharge_date" validate:"required,datetime=2006-01-02,notfuture"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type DischargeResult struct {
	AdmissionID   uuid.UUID `json:"admission_id"`
	DischargeDate string    `json:"discharge_date"`
	TotalDays     int       `json:"total_days"`
	RatePerDay    float64   `json:"rate_per_day"`
	TotalCharge   float64   `json:"total_charge"`
}

// Filter narrows a doctor's assignment list. Zero values do not filter.
type Filter struct {
	Status Status
	From   *time.Time
	To     *time.Time
}

// TotalDays counts billable days of a stay. Both the admission and the
// discharge day are billed, so a same-day stay is one day.
func TotalDays(admitted, discharged time.Time) int {
	return caldate.DaysBetween(admitted, discharged) + 1
}

// Charge is the room charge of a stay, rounded to cents.
func Charge(totalDays int, ratePerDay float64) float64 {
	return round2(float64(totalDays) * ratePerDay)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
