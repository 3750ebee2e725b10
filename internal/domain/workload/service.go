package workload

import (
	"context"
	"sort"

	"github.com/ehr/careflow/internal/apperr"
)

// Recommender lists doctors with their load tier so staff can pick one for a
// new admission. It never hides a doctor; choosing is left to the user.
type Recommender struct {
	repo Repository
}

func NewRecommender(repo Repository) *Recommender {
	return &Recommender{repo: repo}
}

// Recommend returns every roster doctor exactly once, annotated with tier.
// An empty roster yields an empty, non-nil slice.
func (r *Recommender) Recommend(ctx context.Context, order Order) ([]DoctorWithTier, error) {
	loads, err := r.repo.DoctorLoads(ctx)
	if err != nil {
		return nil, apperr.Store("recommend doctors", err)
	}

	out := make([]DoctorWithTier, 0, len(loads))
	for _, l := range loads {
		out = append(out, DoctorWithTier{DoctorLoad: l, Tier: Classify(l.Active)})
	}

	if order == OrderLoad {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Active < out[j].Active })
	}
	return out, nil
}

// Suggest returns the least loaded doctor, for preselecting the admission form.
func (r *Recommender) Suggest(ctx context.Context) (*DoctorWithTier, error) {
	list, err := r.Recommend(ctx, OrderLoad)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &apperr.NotFoundError{Resource: "doctor", ID: "roster", Reason: "no doctors are registered"}
	}
	return &list[0], nil
}
