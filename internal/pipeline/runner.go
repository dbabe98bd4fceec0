// Package pipeline orchestrates the prediction stages per brand: window
// deduplication, prediction generation, verification, and accuracy
// recomputation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salewatch-cli/internal/accuracy"
	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/dedup"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/predict"
	"github.com/sells-group/salewatch-cli/internal/store"
	"github.com/sells-group/salewatch-cli/internal/verify"
)

// Runner wires the pipeline stages to one store.
type Runner struct {
	store    store.Store
	cfg      *config.Config
	dedup    *dedup.Service
	predict  *predict.Service
	verify   *verify.Service
	accuracy *accuracy.Service
}

// NewRunner creates a Runner with all stage services.
func NewRunner(st store.Store, cfg *config.Config) *Runner {
	return &Runner{
		store:    st,
		cfg:      cfg,
		dedup:    dedup.NewService(st, cfg.Dedup),
		predict:  predict.NewService(st, cfg.Predict),
		verify:   verify.NewService(st, cfg.Verify),
		accuracy: accuracy.NewService(st, cfg.Accuracy),
	}
}

// BrandResult summarizes one brand's pipeline run.
type BrandResult struct {
	Brand        string                    `json:"brand"`
	Windows      int                       `json:"windows"`
	Predictions  int                       `json:"predictions"`
	Verification verify.Summary            `json:"verification"`
	Stats        *model.BrandAccuracyStats `json:"stats,omitempty"`
	Err          error                     `json:"-"`
}

// BatchSummary aggregates a multi-brand run.
type BatchSummary struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []BrandResult `json:"results"`
}

// RunBrand executes all stages for one brand under its exclusive lock.
// targetYear is the year predictions are generated for; asOf decides which
// predictions are due for verification.
func (r *Runner) RunBrand(ctx context.Context, brand model.Brand, targetYear int, asOf time.Time) (BrandResult, error) {
	result := BrandResult{Brand: brand.Slug}

	err := r.store.WithBrandLock(ctx, brand.ID, func(ctx context.Context) error {
		windows, err := r.dedup.Run(ctx, brand)
		if err != nil {
			return err
		}
		result.Windows = len(windows)

		preds, err := r.predict.Run(ctx, brand, targetYear)
		if err != nil {
			return err
		}
		result.Predictions = len(preds)

		summary, err := r.verify.Run(ctx, brand, asOf)
		if err != nil {
			return err
		}
		result.Verification = summary

		stats, err := r.accuracy.Run(ctx, brand, asOf)
		if err != nil {
			return err
		}
		result.Stats = stats
		return nil
	})
	if err != nil {
		return result, eris.Wrapf(err, "pipeline: brand %s", brand.Slug)
	}
	return result, nil
}

// RunAll fans the full pipeline out across active brands. One brand's
// failure never aborts its siblings; failures are collected in the summary.
func (r *Runner) RunAll(ctx context.Context, targetYear int, asOf time.Time) (*BatchSummary, error) {
	brands, err := r.store.ListBrands(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list brands")
	}
	if len(brands) == 0 {
		zap.L().Info("pipeline: no active brands")
		return &BatchSummary{}, nil
	}

	concurrency := r.cfg.Pipeline.MaxConcurrentBrands
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("pipeline: starting batch",
		zap.Int("brands", len(brands)),
		zap.Int("concurrency", concurrency),
		zap.Int("target_year", targetYear),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	summary := &BatchSummary{}

	for _, brand := range brands {
		g.Go(func() error {
			result, err := r.RunBrand(gctx, brand, targetYear, asOf)
			if err != nil {
				result.Err = err
				zap.L().Error("pipeline: brand failed",
					zap.String("brand", brand.Slug),
					zap.Error(err),
				)
			}

			mu.Lock()
			if err != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
			summary.Results = append(summary.Results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "pipeline: batch")
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
