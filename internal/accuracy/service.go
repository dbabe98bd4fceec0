package accuracy

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

// Service recomputes brand accuracy against the store.
type Service struct {
	store store.Store
	cfg   config.AccuracyConfig
}

// NewService creates an accuracy service.
func NewService(st store.Store, cfg config.AccuracyConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// Run fully recomputes one brand's stats record and raises drift
// suggestions. Brands below the minimum outcome count are skipped without
// writing. Duplicate pending suggestions of the same type are suppressed.
// The caller is expected to hold the brand's lock.
func (s *Service) Run(ctx context.Context, brand model.Brand, now time.Time) (*model.BrandAccuracyStats, error) {
	log := zap.L().With(zap.String("component", "accuracy"), zap.String("brand", brand.Slug))

	outcomes, err := s.store.ListOutcomesForBrand(ctx, brand.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "accuracy: list outcomes for %s", brand.Slug)
	}

	current, ok := Compute(brand.ID, outcomes, s.cfg, now)
	if !ok {
		log.Debug("insufficient verified outcomes", zap.Int("have", len(outcomes)))
		return nil, nil
	}

	previous, err := s.store.GetBrandStats(ctx, brand.ID)
	if err != nil && !eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(err, "accuracy: get previous stats for %s", brand.Slug)
	}

	if err := s.store.UpsertBrandStats(ctx, *current); err != nil {
		return nil, eris.Wrapf(err, "accuracy: upsert stats for %s", brand.Slug)
	}

	if suggestion, found := DetectAccuracyDrop(previous, *current, s.cfg, now); found {
		if err := s.raise(ctx, suggestion); err != nil {
			return nil, err
		}
	}

	recent, err := s.store.ListRecentOutcomesWithTiming(ctx, brand.ID, s.cfg.TimingDriftWindow)
	if err != nil {
		return nil, eris.Wrapf(err, "accuracy: list recent outcomes for %s", brand.Slug)
	}
	if suggestion, found := DetectTimingDrift(brand.ID, recent, s.cfg, now); found {
		if err := s.raise(ctx, suggestion); err != nil {
			return nil, err
		}
	}

	log.Info("accuracy recomputed",
		zap.Int("total", current.TotalPredictions),
		zap.Float64("hit_rate", current.HitRate),
		zap.Int("reliability_score", current.ReliabilityScore),
		zap.String("tier", string(current.ReliabilityTier)),
	)
	return current, nil
}

// raise persists a suggestion unless one of the same type is already
// pending for the brand.
func (s *Service) raise(ctx context.Context, suggestion model.AdjustmentSuggestion) error {
	pending, err := s.store.HasPendingSuggestion(ctx, suggestion.BrandID, suggestion.Type)
	if err != nil {
		return eris.Wrapf(err, "accuracy: check pending %s suggestion", suggestion.Type)
	}
	if pending {
		return nil
	}
	if err := s.store.CreateSuggestion(ctx, suggestion); err != nil {
		return eris.Wrapf(err, "accuracy: create %s suggestion", suggestion.Type)
	}
	zap.L().Info("adjustment suggestion raised",
		zap.String("brand_id", suggestion.BrandID),
		zap.String("type", string(suggestion.Type)),
	)
	return nil
}

// Overall rolls up every stored per-brand stats record. The hit rate is
// prediction-weighted; timing is the mean of brand averages.
func (s *Service) Overall(ctx context.Context) (model.OverallStats, error) {
	records, err := s.store.ListBrandStats(ctx)
	if err != nil {
		return model.OverallStats{}, eris.Wrap(err, "accuracy: list brand stats")
	}

	var overall model.OverallStats
	var weighted float64
	var timingSum float64
	var timingN int

	for _, r := range records {
		overall.TotalPredictions += r.TotalPredictions
		overall.CorrectPredictions += r.CorrectPredictions
		overall.BrandsTracked++
		weighted += r.HitRate * float64(r.TotalPredictions)
		if r.AvgTimingDeltaDays != nil {
			timingSum += *r.AvgTimingDeltaDays
			timingN++
		}
	}

	if overall.TotalPredictions > 0 {
		overall.HitRate = weighted / float64(overall.TotalPredictions)
	}
	if timingN > 0 {
		avg := timingSum / float64(timingN)
		overall.AvgTimingDeltaDays = &avg
	}
	return overall, nil
}
