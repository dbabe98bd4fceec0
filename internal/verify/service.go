package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

// Summary counts one verification run's classifications.
type Summary struct {
	Total    int `json:"total"`
	Hits     int `json:"hits"`
	Partials int `json:"partials"`
	Misses   int `json:"misses"`
}

// Service verifies due predictions against the store.
type Service struct {
	store store.Store
	cfg   config.VerifyConfig
}

// NewService creates a verification service.
func NewService(st store.Store, cfg config.VerifyConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// Run verifies every due prediction for one brand: window closed as of asOf,
// no automated result yet, no manual override. The store-side upsert is
// guarded so an override landing mid-run still wins. The caller is expected
// to hold the brand's lock.
func (s *Service) Run(ctx context.Context, brand model.Brand, asOf time.Time) (Summary, error) {
	log := zap.L().With(zap.String("component", "verify"), zap.String("brand", brand.Slug))

	var summary Summary

	due, err := s.store.ListDuePredictions(ctx, brand.ID, asOf, 0)
	if err != nil {
		return summary, eris.Wrapf(err, "verify: list due predictions for %s", brand.Slug)
	}
	if len(due) == 0 {
		log.Debug("no due predictions")
		return summary, nil
	}

	tolerance := time.Duration(s.cfg.TimingToleranceDays) * 24 * time.Hour
	for _, p := range due {
		from := model.Day(p.PredictedStart).Add(-tolerance)
		to := model.Day(p.PredictedEnd).Add(tolerance)

		evidence, err := s.store.ListApprovedSalesInRange(ctx, brand.ID, from, to)
		if err != nil {
			return summary, eris.Wrapf(err, "verify: list evidence for prediction %s", p.ID)
		}

		outcome := Assess(p, evidence, s.cfg, asOf)
		if err := s.store.UpsertAutoOutcome(ctx, outcome); err != nil {
			return summary, eris.Wrapf(err, "verify: upsert outcome for prediction %s", p.ID)
		}

		summary.Total++
		switch outcome.AutoResult {
		case model.ResultHit:
			summary.Hits++
		case model.ResultPartial:
			summary.Partials++
		case model.ResultMiss:
			summary.Misses++
		}
	}

	log.Info("verification complete",
		zap.Int("total", summary.Total),
		zap.Int("hits", summary.Hits),
		zap.Int("partials", summary.Partials),
		zap.Int("misses", summary.Misses),
	)
	return summary, nil
}
