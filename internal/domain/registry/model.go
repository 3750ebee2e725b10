package registry

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Age            int       `db:"age" json:"age"`
	Gender         string    `db:"gender" json:"gender"`
	Phone          string    `db:"phone" json:"phone"`
	Contact        *string   `db:"contact" json:"contact,omitempty"`
	MedicalHistory *string   `db:"medical_history" json:"medical_history,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Specialization  string    `db:"specialization" json:"specialization"`
	Phone           string    `db:"phone" json:"phone"`
	Email           *string   `db:"email" json:"email,omitempty"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	Schedule        *string   `db:"schedule" json:"schedule,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type CreatePatientRequest struct {
	Code           string `json:"code" validate:"omitempty,max=32"`
	FirstName      string `json:"first_name" validate:"required,notblank,max=100"`
	LastName       string `json:"last_name" validate:"required,notblank,max=100"`
	Age            int    `json:"age" validate:"gte=0,lte=150"`
	Gender         string `json:"gender" validate:"required,oneof=male female other unknown"`
	Phone          string `json:"phone" validate:"required,phone"`
	Contact        string `json:"contact" validate:"max=255"`
	MedicalHistory string `json:"medical_history" validate:"max=4000"`
}

type CreateDoctorRequest struct {
	Name            string  `json:"name" validate:"required,notblank,max=200"`
	Specialization  string  `json:"specialization" validate:"required,notblank,max=100"`
	Phone           string  `json:"phone" validate:"required,phone"`
	Email           string  `json:"email" validate:"omitempty,email,max=255"`
	ConsultationFee float64 `json:"consultation_fee" validate:"gte=0,cents"`
	Schedule        string  `json:"schedule" validate:"max=500"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
