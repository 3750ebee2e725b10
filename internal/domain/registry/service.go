package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/platform/validate"
)

type Service struct {
	repo   Repository
	v      *validate.Validator
	logger zerolog.Logger
}

func NewService(repo Repository, v *validate.Validator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, v: v, logger: logger.With().Str("component", "registry").Logger()}
}

func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	if err := s.v.Struct(req); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:             uuid.New(),
		Code:           strings.TrimSpace(req.Code),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Age:            req.Age,
		Gender:         req.Gender,
		Phone:          req.Phone,
		Contact:        nullable(strings.TrimSpace(req.Contact)),
		MedicalHistory: nullable(strings.TrimSpace(req.MedicalHistory)),
	}
	if p.Code == "" {
		p.Code = patientCode(p.ID)
	}

	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

// patientCode derives the facility code printed on wristbands.
func patientCode(id uuid.UUID) string {
	return "PT-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListPatients(ctx, limit, offset)
}

func (s *Service) CreateDoctor(ctx context.Context, req CreateDoctorRequest) (*Doctor, error) {
	if err := s.v.Struct(req); err != nil {
		return nil, err
	}

	d := &Doctor{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(req.Name),
		Specialization:  strings.TrimSpace(req.Specialization),
		Phone:           req.Phone,
		Email:           nullable(strings.ToLower(strings.TrimSpace(req.Email))),
		ConsultationFee: req.ConsultationFee,
		Schedule:        nullable(strings.TrimSpace(req.Schedule)),
	}

	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor registered")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.ListDoctors(ctx, limit, offset)
}

// DeleteDoctor removes a doctor that has never been assigned. Historical
// admissions keep their doctor, so any admission at all blocks deletion.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockDoctor(ctx, id); err != nil {
			return err
		}
		n, err := s.repo.CountAdmissions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return doctorInUse(id)
		}
		return s.repo.DeleteDoctor(ctx, id)
	})
	if err != nil {
		return apperr.Store("delete doctor", err)
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	return nil
}

func doctorInUse(id uuid.UUID) error {
	return &apperr.ConflictError{
		Resource: "doctor",
		Message:  "doctor " + id.String() + " has admission records and cannot be deleted",
		Guidance: "reassign or archive the doctor instead; admission history must keep its doctor",
	}
}
