package stats

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/domain/workload"
	"github.com/ehr/careflow/internal/platform/cache"
	"github.com/ehr/careflow/pkg/caldate"
)

var today = time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

func newTestService(repo Repository, kv cache.KV, ttl time.Duration) *Service {
	return NewService(repo, kv, ttl, caldate.Fixed(today), zerolog.Nop())
}

func TestGetDoctorStats_AverageStayIgnoresActive(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Rao")
	repo.admit(uuid.New(), doc, "2024-03-01", "2024-03-04")
	repo.admit(uuid.New(), doc, "2024-02-20", "2024-02-27")
	repo.admit(uuid.New(), doc, "2024-03-08", "")

	st, err := newTestService(repo, nil, 0).GetDoctorStats(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalAssignments)
	assert.Equal(t, 1, st.ActiveAssignments)
	assert.Equal(t, 2, st.CompletedAssignments)
	assert.Equal(t, 5.0, st.AverageStayDays)
	assert.True(t, st.HasCompleted)
	assert.Equal(t, 1, st.AssignmentsLast7)
	assert.Equal(t, 3, st.AssignmentsLast30)
	require.NotNil(t, st.LastAdmissionDate)
	assert.Equal(t, "2024-03-08", *st.LastAdmissionDate)
	assert.Equal(t, workload.TierLow, st.Tier)
	assert.Equal(t, 1, repo.snapshots)
}

func TestGetDoctorStats_NoCompletedAdmissions(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Idle")

	st, err := newTestService(repo, nil, 0).GetDoctorStats(context.Background(), doc)

	require.NoError(t, err)
	assert.Zero(t, st.AverageStayDays)
	assert.False(t, st.HasCompleted)
	assert.Nil(t, st.LastAdmissionDate)
}

func TestGetDoctorStats_RecentWindowBoundaries(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Window")
	repo.admit(uuid.New(), doc, "2024-03-03", "2024-03-04") // today - 7
	repo.admit(uuid.New(), doc, "2024-03-02", "2024-03-04") // today - 8
	repo.admit(uuid.New(), doc, "2024-02-09", "2024-02-10") // today - 30
	repo.admit(uuid.New(), doc, "2024-02-08", "2024-02-10") // today - 31

	st, err := newTestService(repo, nil, 0).GetDoctorStats(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, 1, st.AssignmentsLast7)
	assert.Equal(t, 3, st.AssignmentsLast30)
}

func TestGetDoctorStats_UnknownDoctor(t *testing.T) {
	_, err := newTestService(newMockRepo(), nil, 0).GetDoctorStats(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetDoctorStats_StoreFailure(t *testing.T) {
	repo := newMockRepo()
	repo.failWith = errors.New("connection reset")

	_, err := newTestService(repo, nil, 0).GetDoctorStats(context.Background(), uuid.New())

	require.ErrorIs(t, err, apperr.ErrStore)
}

func TestGetFacilityStats(t *testing.T) {
	repo := newMockRepo()
	light := repo.addDoctor("Dr. A")
	busy := repo.addDoctor("Dr. B")
	repo.addDoctor("Dr. C")
	repo.admit(uuid.New(), light, "2024-03-01", "2024-03-04")
	repo.admit(uuid.New(), light, "2024-02-20", "2024-02-27")
	for i := 0; i < workload.HighThreshold; i++ {
		repo.admit(uuid.New(), busy, "2024-03-0"+strconv.Itoa(i%9+1), "")
	}

	fs, err := newTestService(repo, nil, 0).GetFacilityStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", fs.AsOf)
	assert.Equal(t, 3, fs.DoctorCount)
	assert.Equal(t, 12, fs.TotalAssignments)
	assert.Equal(t, 10, fs.ActiveAssignments)
	assert.Equal(t, 2, fs.CompletedAssignments)
	assert.Equal(t, 4.0, fs.AverageAssignmentsPerDoc)
	assert.Equal(t, 5.0, fs.AverageStayDays)
	assert.Equal(t, workload.Distribution{workload.TierLow: 2, workload.TierMedium: 0, workload.TierHigh: 1}, fs.TierDistribution)
	require.Len(t, fs.Doctors, 3)
	assert.Equal(t, "Dr. A", fs.Doctors[0].Name)
	assert.Equal(t, workload.TierHigh, fs.Doctors[1].Tier)
}

func TestGetFacilityStats_EmptyRoster(t *testing.T) {
	fs, err := newTestService(newMockRepo(), nil, 0).GetFacilityStats(context.Background())

	require.NoError(t, err)
	assert.Zero(t, fs.DoctorCount)
	assert.Zero(t, fs.AverageAssignmentsPerDoc)
	assert.NotNil(t, fs.Doctors)
	assert.Len(t, fs.TierDistribution, len(workload.Tiers))
}

func TestStatsCache_HitAndInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Cached")
	repo.admit(uuid.New(), doc, "2024-03-01", "")
	svc := newTestService(repo, cache.NewMemory(), time.Minute)

	_, err := svc.GetFacilityStats(ctx)
	require.NoError(t, err)
	_, err = svc.GetDoctorStats(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, 2, repo.aggregates)

	fs, err := svc.GetFacilityStats(ctx)
	require.NoError(t, err)
	st, err := svc.GetDoctorStats(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.aggregates, "second reads are served from cache")
	assert.Equal(t, 1, fs.ActiveAssignments)
	assert.Equal(t, 1, fs.TierDistribution[workload.TierLow])
	assert.Equal(t, doc, st.DoctorID)

	repo.admit(uuid.New(), doc, "2024-03-02", "")
	svc.Invalidate(ctx, doc)

	fs, err = svc.GetFacilityStats(ctx)
	require.NoError(t, err)
	st, err = svc.GetDoctorStats(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 4, repo.aggregates)
	assert.Equal(t, 2, fs.ActiveAssignments)
	assert.Equal(t, 2, st.ActiveAssignments)
}

func TestStatsCache_InvalidateDuringAggregateIsNotMasked(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Racy")
	repo.admit(uuid.New(), doc, "2024-03-01", "")
	svc := newTestService(repo, cache.NewMemory(), time.Minute)

	// A write commits and invalidates while the read below is still
	// holding its pre-write snapshot.
	concurrentWrite := func() {
		repo.afterAggregate = nil
		repo.admit(uuid.New(), doc, "2024-03-02", "")
		svc.Invalidate(ctx, doc)
	}

	repo.afterAggregate = concurrentWrite
	st, err := svc.GetDoctorStats(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveAssignments, "the racing read sees its own snapshot")

	st, err = svc.GetDoctorStats(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ActiveAssignments)
	assert.Equal(t, 2, repo.aggregates)

	repo.afterAggregate = concurrentWrite
	fs, err := svc.GetFacilityStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fs.ActiveAssignments)

	fs, err = svc.GetFacilityStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.ActiveAssignments)
	assert.Equal(t, 4, repo.aggregates)
}

func TestStatsCache_GenerationReadFailureSkipsCache(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	kv := cache.NewMemory()
	require.NoError(t, kv.Set(ctx, facilityGenKey(), "garbage", 0))
	svc := newTestService(repo, kv, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := svc.GetFacilityStats(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, repo.aggregates)
}

func TestStatsCache_ZeroTTLDisablesCaching(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	kv := cache.NewMemory()
	svc := newTestService(repo, kv, 0)

	for i := 0; i < 3; i++ {
		_, err := svc.GetFacilityStats(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, repo.aggregates)
	_, err := kv.Get(ctx, facilityKey(0))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestStatsCache_CorruptEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	kv := cache.NewMemory()
	require.NoError(t, kv.Set(ctx, facilityKey(0), "{not json", time.Minute))

	_, err := newTestService(repo, kv, time.Minute).GetFacilityStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, repo.aggregates)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemory()
	doc := uuid.New()
	svc := newTestService(newMockRepo(), kv, time.Minute)
	svc.Invalidate(ctx, doc)
	require.NoError(t, kv.Set(ctx, facilityKey(1), "{}", 0))
	require.NoError(t, kv.Set(ctx, doctorKey(doc, 1), "{}", 0))
	require.NoError(t, kv.Set(ctx, "other:key", "x", 0))

	require.NoError(t, svc.Flush(ctx))

	keys, err := kv.ScanKeys(ctx, "*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"careflow:stats-gen:doctor:" + doc.String(), "careflow:stats-gen:facility", "other:key"}, keys)
}

func TestGetPatientAssignmentHistory(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Dr. Mehta")
	patient := repo.addPatient("Ravi Kumar")
	repo.admit(patient, doc, "2024-03-01", "2024-03-04")
	repo.admit(patient, doc, "2024-03-07", "")
	repo.bills[patient] = []BillRow{
		{BillID: uuid.New(), TotalAmount: 500, Paid: 500},
		{BillID: uuid.New(), TotalAmount: 1000, Paid: 400},
		{BillID: uuid.New(), TotalAmount: 200},
	}

	h, err := newTestService(repo, nil, 0).GetPatientAssignmentHistory(context.Background(), patient)

	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", h.PatientName)
	require.Len(t, h.Assignments, 2)

	current := h.Assignments[0]
	assert.Equal(t, "2024-03-07", current.AdmissionDate)
	assert.True(t, current.Ongoing)
	assert.Nil(t, current.DischargeDate)
	assert.Equal(t, 3, current.StayDays)

	past := h.Assignments[1]
	assert.False(t, past.Ongoing)
	require.NotNil(t, past.DischargeDate)
	assert.Equal(t, "2024-03-04", *past.DischargeDate)
	assert.Equal(t, 3, past.StayDays)
	assert.Equal(t, "Dr. Mehta", past.DoctorName)

	require.Len(t, h.Bills, 3)
	assert.Equal(t, BillPaid, h.Bills[0].Status)
	assert.Equal(t, BillPartial, h.Bills[1].Status)
	assert.Equal(t, 600.0, h.Bills[1].Outstanding)
	assert.Equal(t, BillPending, h.Bills[2].Status)
	assert.Equal(t, 800.0, h.OutstandingTotal)
	assert.Equal(t, 1, repo.snapshots)
}

func TestGetPatientAssignmentHistory_NoAdmissions(t *testing.T) {
	repo := newMockRepo()
	patient := repo.addPatient("New Patient")

	h, err := newTestService(repo, nil, 0).GetPatientAssignmentHistory(context.Background(), patient)

	require.NoError(t, err)
	assert.NotNil(t, h.Assignments)
	assert.Empty(t, h.Assignments)
	assert.NotNil(t, h.Bills)
}

func TestGetPatientAssignmentHistory_UnknownPatient(t *testing.T) {
	_, err := newTestService(newMockRepo(), nil, 0).GetPatientAssignmentHistory(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBillStatusOf(t *testing.T) {
	tests := []struct {
		total, paid float64
		want        BillStatus
	}{
		{100, 100, BillPaid},
		{100, 120, BillPaid},
		{100, 0.01, BillPartial},
		{100, 0, BillPending},
		{0, 0, BillPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BillStatusOf(tt.total, tt.paid), "total=%v paid=%v", tt.total, tt.paid)
	}
}
