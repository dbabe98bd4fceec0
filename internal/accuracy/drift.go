package accuracy

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// DetectAccuracyDrop compares the freshly computed hit rate against the
// previously stored one. A drop of cfg.DropThreshold or more produces an
// advisory suggestion; no previous record means no baseline to drop from.
func DetectAccuracyDrop(previous *model.BrandAccuracyStats, current model.BrandAccuracyStats, cfg config.AccuracyConfig, now time.Time) (model.AdjustmentSuggestion, bool) {
	if previous == nil {
		return model.AdjustmentSuggestion{}, false
	}
	drop := previous.HitRate - current.HitRate
	if drop < cfg.DropThreshold {
		return model.AdjustmentSuggestion{}, false
	}

	return model.AdjustmentSuggestion{
		ID:      uuid.New().String(),
		BrandID: current.BrandID,
		Type:    model.SuggestionAccuracyDrop,
		Description: fmt.Sprintf("Hit rate dropped from %.0f%% to %.0f%%",
			previous.HitRate*100, current.HitRate*100),
		RecommendedAction: "Review recent misses for changed promotional patterns",
		SupportingData: map[string]any{
			"previous_hit_rate": previous.HitRate,
			"new_hit_rate":      current.HitRate,
		},
		Status:    model.SuggestionPending,
		CreatedAt: now.UTC(),
	}, true
}

// DetectTimingDrift checks the brand's most recent verified outcomes for a
// consistent early or late bias. recent is expected to be capped at
// cfg.TimingDriftWindow entries, newest first, all carrying timing deltas.
func DetectTimingDrift(brandID string, recent []model.PredictionOutcome, cfg config.AccuracyConfig, now time.Time) (model.AdjustmentSuggestion, bool) {
	if len(recent) < cfg.TimingDriftMinSamples {
		return model.AdjustmentSuggestion{}, false
	}

	deltas := make([]float64, 0, len(recent))
	for _, o := range recent {
		if o.TimingDeltaDays != nil {
			deltas = append(deltas, float64(*o.TimingDeltaDays))
		}
	}
	if len(deltas) < cfg.TimingDriftMinSamples {
		return model.AdjustmentSuggestion{}, false
	}

	mean, err := stats.Mean(deltas)
	if err != nil || math.Abs(mean) <= cfg.TimingDriftDays {
		return model.AdjustmentSuggestion{}, false
	}

	direction := "later"
	if mean < 0 {
		direction = "earlier"
	}
	shift := int(math.Round(math.Abs(mean)))

	return model.AdjustmentSuggestion{
		ID:      uuid.New().String(),
		BrandID: brandID,
		Type:    model.SuggestionTimingDrift,
		Description: fmt.Sprintf("Sales consistently start %.1f days %s than predicted",
			math.Abs(mean), direction),
		RecommendedAction: fmt.Sprintf("Shift future predictions %d days %s", shift, direction),
		SupportingData: map[string]any{
			"avg_delta_days": mean,
			"sample_size":    len(deltas),
		},
		Status:    model.SuggestionPending,
		CreatedAt: now.UTC(),
	}, true
}
