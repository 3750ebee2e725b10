package admission

import (
	"github.com/google/uuid"

	"github.com/ehr/careflow/internal/apperr"
)

func alreadyAdmitted(patientID uuid.UUID) error {
	return &apperr.ConflictError{
		Resource: "admission",
		Field:    "patient_id",
		Message:  "patient " + patientID.String() + " already has an active admission",
		Guidance: "discharge the current admission before admitting the patient again",
	}
}

func noActiveAdmission(id uuid.UUID) error {
	return &apperr.NotFoundError{Resource: "admission", ID: id.String(), Reason: "no active admission"}
}
