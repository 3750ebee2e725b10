package stats

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/domain/workload"
	"github.com/ehr/careflow/internal/platform/cache"
	"github.com/ehr/careflow/pkg/caldate"
)

// Cached views live under keyPrefix with the generation of their scope in
// the key. Invalidate bumps the generation, so a view computed from a
// snapshot taken before a write is stored under a key nobody reads again.
const (
	keyPrefix = "careflow:stats:"
	genPrefix = "careflow:stats-gen:"
)

func facilityKey(gen int64) string {
	return keyPrefix + "facility:" + strconv.FormatInt(gen, 10)
}

func doctorKey(id uuid.UUID, gen int64) string {
	return keyPrefix + "doctor:" + id.String() + ":" + strconv.FormatInt(gen, 10)
}

func facilityGenKey() string {
	return genPrefix + "facility"
}

func doctorGenKey(id uuid.UUID) string {
	return genPrefix + "doctor:" + id.String()
}

// Service computes statistics from admission history. Doctor and facility
// views are cached in kv for ttl; a ttl of zero disables caching.
type Service struct {
	repo   Repository
	kv     cache.KV
	ttl    time.Duration
	clock  caldate.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, kv cache.KV, ttl time.Duration, clock caldate.Clock, logger zerolog.Logger) *Service {
	if kv == nil {
		kv = cache.Nop{}
	}
	return &Service{
		repo:   repo,
		kv:     kv,
		ttl:    ttl,
		clock:  clock,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

func (s *Service) GetDoctorStats(ctx context.Context, doctorID uuid.UUID) (*DoctorStats, error) {
	var key string
	if gen, ok := s.generation(ctx, doctorGenKey(doctorID)); ok {
		key = doctorKey(doctorID, gen)
	}
	var out DoctorStats
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	today := s.clock.Today()
	var rows []WorkloadRow
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.AggregateDoctorWorkload(ctx, since(today, ShortWindowDays), since(today, LongWindowDays), &doctorID)
		return err
	})
	if err != nil {
		return nil, apperr.Store("doctor stats", err)
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("doctor", doctorID.String())
	}

	out = doctorStats(rows[0])
	s.store(ctx, key, out)
	return &out, nil
}

func (s *Service) GetFacilityStats(ctx context.Context) (*FacilityStats, error) {
	var key string
	if gen, ok := s.generation(ctx, facilityGenKey()); ok {
		key = facilityKey(gen)
	}
	var out FacilityStats
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	today := s.clock.Today()
	var rows []WorkloadRow
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.AggregateDoctorWorkload(ctx, since(today, ShortWindowDays), since(today, LongWindowDays), nil)
		return err
	})
	if err != nil {
		return nil, apperr.Store("facility stats", err)
	}

	out = facilityStats(today, rows)
	s.store(ctx, key, out)
	return &out, nil
}

// GetPatientAssignmentHistory lists every admission of the patient, newest
// first, with the patient's bills. It is never cached.
func (s *Service) GetPatientAssignmentHistory(ctx context.Context, patientID uuid.UUID) (*PatientHistory, error) {
	today := s.clock.Today()

	var (
		patient    *PatientRef
		admissions []AdmissionRow
		bills      []BillRow
	)
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if patient, err = s.repo.GetPatient(ctx, patientID); err != nil {
			return err
		}
		if admissions, err = s.repo.ListAdmissionsByPatient(ctx, patientID); err != nil {
			return err
		}
		bills, err = s.repo.ListBillsByPatient(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, apperr.Store("patient assignment history", err)
	}

	h := &PatientHistory{
		PatientID:   patient.ID,
		PatientCode: patient.Code,
		PatientName: patient.Name,
		Assignments: make([]AssignmentHistory, 0, len(admissions)),
		Bills:       make([]BillSummary, 0, len(bills)),
	}
	for _, a := range admissions {
		h.Assignments = append(h.Assignments, assignmentHistory(today, a))
	}
	var outstanding float64
	for _, b := range bills {
		sum := billSummary(b)
		outstanding += sum.Outstanding
		h.Bills = append(h.Bills, sum)
	}
	h.OutstandingTotal = round2(outstanding)
	return h, nil
}

// Invalidate retires the cached views an admission write of doctorID
// affects. Failures are logged; the entries expire on their own.
func (s *Service) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if s.ttl <= 0 {
		return
	}
	for _, gk := range []string{facilityGenKey(), doctorGenKey(doctorID)} {
		if _, err := s.kv.Incr(ctx, gk); err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Str("key", gk).Msg("stats cache invalidation failed")
		}
	}
}

// generation reads the current generation of a cache scope. It must be read
// before the snapshot the cached view is computed from. ok is false when the
// generation is unknown and the view must not be cached.
func (s *Service) generation(ctx context.Context, genKey string) (int64, bool) {
	if s.ttl <= 0 {
		return 0, false
	}
	raw, err := s.kv.Get(ctx, genKey)
	if errors.Is(err, cache.ErrMiss) {
		return 0, true
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", genKey).Msg("stats cache generation read failed")
		return 0, false
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn().Str("key", genKey).Msg("stats cache generation is not an integer")
		return 0, false
	}
	return gen, true
}

func (s *Service) cached(ctx context.Context, key string, dst interface{}) bool {
	if key == "" {
		return false
	}
	err := cache.GetJSON(ctx, s.kv, key, dst)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("stats cache read failed")
	}
	return err == nil
}

func (s *Service) store(ctx context.Context, key string, v interface{}) {
	if key == "" {
		return
	}
	if err := cache.SetJSON(ctx, s.kv, key, v, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("stats cache write failed")
	}
}

func since(today time.Time, days int) time.Time {
	return caldate.AddDays(today, -days)
}

func doctorStats(w WorkloadRow) DoctorStats {
	d := DoctorStats{
		DoctorID:             w.DoctorID,
		Name:                 w.Name,
		Specialization:       w.Specialization,
		TotalAssignments:     w.Total,
		ActiveAssignments:    w.Active,
		CompletedAssignments: w.Completed,
		AverageStayDays:      averageStay(w.StayDaysSum, w.Completed),
		HasCompleted:         w.Completed > 0,
		AssignmentsLast7:     w.Recent7,
		AssignmentsLast30:    w.Recent30,
		Tier:                 workload.Classify(w.Active),
	}
	if w.LastAdmission != nil {
		s := caldate.Format(*w.LastAdmission)
		d.LastAdmissionDate = &s
	}
	return d
}

func facilityStats(today time.Time, rows []WorkloadRow) FacilityStats {
	f := FacilityStats{
		AsOf:             caldate.Format(today),
		DoctorCount:      len(rows),
		TierDistribution: workload.NewDistribution(),
		Doctors:          make([]DoctorStats, 0, len(rows)),
	}
	var staySum int
	for _, w := range rows {
		f.TotalAssignments += w.Total
		f.ActiveAssignments += w.Active
		f.CompletedAssignments += w.Completed
		f.AssignmentsLast7 += w.Recent7
		f.AssignmentsLast30 += w.Recent30
		staySum += w.StayDaysSum
		f.TierDistribution.Add(w.Active)
		f.Doctors = append(f.Doctors, doctorStats(w))
	}
	if f.DoctorCount > 0 {
		f.AverageAssignmentsPerDoc = round2(float64(f.TotalAssignments) / float64(f.DoctorCount))
	}
	f.AverageStayDays = averageStay(staySum, f.CompletedAssignments)
	f.HasCompleted = f.CompletedAssignments > 0
	return f
}

func assignmentHistory(today time.Time, a AdmissionRow) AssignmentHistory {
	h := AssignmentHistory{
		AdmissionID:    a.AdmissionID,
		DoctorID:       a.DoctorID,
		DoctorName:     a.DoctorName,
		Specialization: a.Specialization,
		AdmissionDate:  caldate.Format(a.AdmissionDate),
		Status:         a.Status,
		Reason:         a.Reason,
		RatePerDay:     a.RatePerDay,
		TotalCharge:    a.TotalCharge,
	}
	end := today
	if a.DischargeDate != nil {
		end = *a.DischargeDate
		s := caldate.Format(end)
		h.DischargeDate = &s
	} else {
		h.Ongoing = true
	}
	h.StayDays = caldate.DaysBetween(a.AdmissionDate, end)
	return h
}

func billSummary(b BillRow) BillSummary {
	outstanding := round2(b.TotalAmount - b.Paid)
	if outstanding < 0 {
		outstanding = 0
	}
	return BillSummary{
		BillID:      b.BillID,
		Description: b.Description,
		TotalAmount: b.TotalAmount,
		Paid:        b.Paid,
		Outstanding: outstanding,
		Status:      BillStatusOf(b.TotalAmount, b.Paid),
		CreatedAt:   b.CreatedAt,
	}
}

// Flush drops every cached statistics view. Generations are kept so that a
// view computed before the flush cannot reappear under a reused key.
func (s *Service) Flush(ctx context.Context) error {
	return cache.DeletePrefix(ctx, s.kv, keyPrefix)
}
