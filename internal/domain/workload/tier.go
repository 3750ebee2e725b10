// Package workload classifies doctors by their number of active admissions
// and recommends doctors for new admissions from that classification.
package workload

// Tier is the load band of a doctor.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// A doctor with fewer than MediumThreshold active admissions is Low, fewer
// than HighThreshold is Medium, anything else is High.
const (
	MediumThreshold = 5
	HighThreshold   = 10
)

// Tiers lists every tier from lightest to heaviest.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// Classify maps an active admission count to its tier. Negative counts are
// treated as zero.
func Classify(active int) Tier {
	switch {
	case active >= HighThreshold:
		return TierHigh
	case active >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Distribution counts doctors per tier. Every tier is present, zero or not.
type Distribution map[Tier]int

func NewDistribution() Distribution {
	d := make(Distribution, len(Tiers))
	for _, t := range Tiers {
		d[t] = 0
	}
	return d
}

// Add classifies active and counts it.
func (d Distribution) Add(active int) {
	d[Classify(active)]++
}
