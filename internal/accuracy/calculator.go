// Package accuracy recomputes per-brand prediction accuracy, derives
// reliability scores, and emits adjustment suggestions for systematic
// error patterns.
package accuracy

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// Compute rebuilds a brand's accuracy stats from its full outcome history.
// Manual overrides take precedence over automated results. Returns false
// when the brand has fewer verified outcomes than cfg.MinOutcomes; sparse
// history means insufficient data, not zero accuracy.
func Compute(brandID string, outcomes []model.PredictionOutcome, cfg config.AccuracyConfig, now time.Time) (*model.BrandAccuracyStats, bool) {
	var (
		hits, partials, misses int
		timingDeltas           []float64
		discountDeltas         []float64
	)

	for _, o := range outcomes {
		switch o.EffectiveResult() {
		case model.ResultHit:
			hits++
		case model.ResultPartial:
			partials++
		case model.ResultMiss:
			misses++
		default:
			continue
		}
		if o.TimingDeltaDays != nil {
			timingDeltas = append(timingDeltas, float64(*o.TimingDeltaDays))
		}
		if o.DiscountDelta != nil {
			discountDeltas = append(discountDeltas, *o.DiscountDelta)
		}
	}

	total := hits + partials + misses
	if total < cfg.MinOutcomes {
		return nil, false
	}

	hitRate := (float64(hits) + 0.5*float64(partials)) / float64(total)

	s := &model.BrandAccuracyStats{
		ID:                 uuid.New().String(),
		BrandID:            brandID,
		TotalPredictions:   total,
		CorrectPredictions: hits,
		PartialPredictions: partials,
		MissedPredictions:  misses,
		HitRate:            hitRate,
		ReliabilityScore:   ReliabilityScore(hitRate, total),
		ReliabilityTier:    Tier(hitRate),
		LastCalculatedAt:   now.UTC(),
	}

	if len(timingDeltas) > 0 {
		if mean, err := stats.Mean(timingDeltas); err == nil {
			s.AvgTimingDeltaDays = &mean
		}
		if std, err := stats.StandardDeviation(timingDeltas); err == nil {
			s.TimingDeltaStd = &std
		}
	}
	if len(discountDeltas) > 0 {
		if mean, err := stats.Mean(discountDeltas); err == nil {
			s.AvgDiscountDelta = &mean
		}
	}

	return s, true
}

// ReliabilityScore maps hit rate and sample size to a 0-100 score. The
// volume term rewards track-record depth with diminishing returns.
func ReliabilityScore(hitRate float64, total int) int {
	score := int(math.Floor(hitRate*80)) +
		min(20, int(math.Floor(5*math.Log2(float64(total)+1))))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Tier buckets a hit rate into a coarse reliability grade.
func Tier(hitRate float64) model.ReliabilityTier {
	switch {
	case hitRate >= 0.80:
		return model.TierExcellent
	case hitRate >= 0.60:
		return model.TierGood
	case hitRate >= 0.40:
		return model.TierFair
	default:
		return model.TierPoor
	}
}
