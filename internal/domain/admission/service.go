package admission

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/domain/workload"
	"github.com/ehr/careflow/internal/platform/validate"
	"github.com/ehr/careflow/pkg/caldate"
)

// StatsInvalidator drops cached statistics touched by an admission write.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, doctorID uuid.UUID)
}

// Service owns the Admitted -> Discharged lifecycle. It is the only writer of
// admission rows.
type Service struct {
	repo   Repository
	v      *validate.Validator
	logger zerolog.Logger
	stats  StatsInvalidator
}

func NewService(repo Repository, v *validate.Validator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, v: v, logger: logger.With().Str("component", "admission").Logger()}
}

// SetStatsInvalidator attaches an optional cache invalidator to the service.
func (s *Service) SetStatsInvalidator(inv StatsInvalidator) {
	s.stats = inv
}

// Admit opens an admission for a patient who has none active.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Admission, error) {
	if err := s.v.Struct(req); err != nil {
		return nil, err
	}

	verr := &apperr.ValidationError{}
	patientID := parseID(verr, "patient_id", req.PatientID)
	doctorID := parseID(verr, "doctor_id", req.DoctorID)
	admittedOn, err := caldate.Parse(req.AdmissionDate)
	if err != nil {
		verr.Add("admission_date", "datetime", "must be a date in YYYY-MM-DD format")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	a := &Admission{
		ID:            uuid.New(),
		PatientID:     patientID,
		DoctorID:      doctorID,
		AdmissionDate: admittedOn,
		Reason:        strings.TrimSpace(req.Reason),
		Status:        StatusAdmitted,
		RatePerDay:    req.RoomChargePerDay,
	}

	var doctorActive int
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPatient(ctx, a.PatientID); err != nil {
			return err
		}
		if err := s.repo.LockDoctor(ctx, a.DoctorID); err != nil {
			return err
		}
		active, err := s.repo.HasActiveAdmission(ctx, a.PatientID)
		if err != nil {
			return err
		}
		if active {
			return alreadyAdmitted(a.PatientID)
		}
		if err := s.repo.Insert(ctx, a); err != nil {
			return err
		}
		doctorActive, err = s.repo.CountActiveAdmissions(ctx, a.DoctorID)
		return err
	})
	if err != nil {
		return nil, apperr.Store("admit patient", err)
	}

	s.invalidate(ctx, a.DoctorID)

	tier := workload.Classify(doctorActive)
	evt := s.logger.Info()
	if tier == workload.TierHigh {
		evt = s.logger.Warn()
	}
	evt.Str("admission_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Int("doctor_active", doctorActive).
		Str("doctor_tier", string(tier)).
		Msg("patient admitted")
	return a, nil
}

// Discharge closes an active admission and bills the stay. A second
// discharge of the same admission fails with NotFound and bills nothing.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, req DischargeRequest) (*DischargeResult, error) {
	if err := s.v.Struct(req); err != nil {
		return nil, err
	}
	dischargedOn, err := caldate.Parse(req.DischargeDate)
	if err != nil {
		return nil, apperr.Invalid("discharge_date", "datetime", "must be a date in YYYY-MM-DD format")
	}
	var notes *string
	if n := strings.TrimSpace(req.Notes); n != "" {
		notes = &n
	}

	var res *DischargeResult
	var doctorID uuid.UUID
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusAdmitted {
			return noActiveAdmission(id)
		}
		if dischargedOn.Before(a.AdmissionDate) {
			return apperr.Invalid("discharge_date", "gtefield",
				"must not be before the admission date "+caldate.Format(a.AdmissionDate))
		}

		days := TotalDays(a.AdmissionDate, dischargedOn)
		total := Charge(days, a.RatePerDay)

		updated, err := s.repo.UpdateOnDischarge(ctx, id, dischargedOn, total, notes)
		if err != nil {
			return err
		}
		if !updated {
			return noActiveAdmission(id)
		}

		doctorID = a.DoctorID
		res = &DischargeResult{
			AdmissionID:   id,
			DischargeDate: caldate.Format(dischargedOn),
			TotalDays:     days,
			RatePerDay:    a.RatePerDay,
			TotalCharge:   total,
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("discharge patient", err)
	}

	s.invalidate(ctx, doctorID)

	s.logger.Info().
		Str("admission_id", id.String()).
		Str("doctor_id", doctorID.String()).
		Int("total_days", res.TotalDays).
		Msg("patient discharged")
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByDoctor returns a page of the doctor's admissions, newest first. The
// total and the page come from the same snapshot.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f Filter, limit, offset int) ([]*Assignment, int, error) {
	verr := &apperr.ValidationError{}
	if f.Status != "" && f.Status != StatusAdmitted && f.Status != StatusDischarged {
		verr.Add("status", "oneof", "must be one of: Admitted Discharged")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		verr.Add("to", "gtefield", "must not be before from")
	}
	if err := verr.OrNil(); err != nil {
		return nil, 0, err
	}

	var (
		items []*Assignment
		total int
	)
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context) error {
		ok, err := s.repo.DoctorExists(ctx, doctorID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("doctor", doctorID.String())
		}
		items, total, err = s.repo.ListByDoctor(ctx, doctorID, f, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, apperr.Store("list doctor admissions", err)
	}
	return items, total, nil
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, doctorID)
	}
}

func parseID(verr *apperr.ValidationError, field, raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add(field, "uuid", "must be a valid UUID")
	}
	return id
}
