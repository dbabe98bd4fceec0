// Package store provides persistence for brands, sales, windows,
// predictions, outcomes, and accuracy records.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salewatch-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the prediction pipeline.
type Store interface {
	// Brands
	CreateBrand(ctx context.Context, b model.Brand) error
	GetBrand(ctx context.Context, idOrSlug string) (*model.Brand, error)
	ListBrands(ctx context.Context, activeOnly bool) ([]model.Brand, error)

	// Detected sales
	InsertDetectedSales(ctx context.Context, sales []model.DetectedSale) error
	ListUnprocessedSales(ctx context.Context, brandID string) ([]model.DetectedSale, error)
	ListApprovedSalesInRange(ctx context.Context, brandID string, from, to time.Time) ([]model.DetectedSale, error)
	ListSalesByIDs(ctx context.Context, ids []string) ([]model.DetectedSale, error)

	// Sale windows
	CreateSaleWindows(ctx context.Context, windows []model.SaleWindow) error
	ListWindows(ctx context.Context, brandID string) ([]model.SaleWindow, error)
	ListWindowsByYear(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error)
	ListWindowsBefore(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error)

	// Predictions
	CreatePredictions(ctx context.Context, preds []model.Prediction) error
	GetPrediction(ctx context.Context, id string) (*model.Prediction, error)
	ListPredictionsForYear(ctx context.Context, brandID string, year int) ([]model.Prediction, error)
	// ListDuePredictions returns the brand's predictions whose window has
	// closed as of asOf and which carry no automated result and no manual
	// override. A limit of 0 means no limit.
	ListDuePredictions(ctx context.Context, brandID string, asOf time.Time, limit int) ([]model.Prediction, error)
	ListUpcomingPredictions(ctx context.Context, from time.Time, days int) ([]model.Prediction, error)

	// Outcomes
	GetOutcome(ctx context.Context, predictionID string) (*model.PredictionOutcome, error)
	// UpsertAutoOutcome writes the automated result. It never touches a row
	// whose manual_override flag is set.
	UpsertAutoOutcome(ctx context.Context, o model.PredictionOutcome) error
	OverrideOutcome(ctx context.Context, predictionID string, result model.Result, reason string) (*model.PredictionOutcome, error)
	ListOutcomesForBrand(ctx context.Context, brandID string) ([]model.PredictionOutcome, error)
	// ListRecentOutcomesWithTiming returns the brand's newest verified
	// outcomes that carry a timing delta, newest first.
	ListRecentOutcomesWithTiming(ctx context.Context, brandID string, limit int) ([]model.PredictionOutcome, error)

	// Accuracy stats
	GetBrandStats(ctx context.Context, brandID string) (*model.BrandAccuracyStats, error)
	UpsertBrandStats(ctx context.Context, stats model.BrandAccuracyStats) error
	ListBrandStats(ctx context.Context) ([]model.BrandAccuracyStats, error)

	// Adjustment suggestions
	CreateSuggestion(ctx context.Context, s model.AdjustmentSuggestion) error
	HasPendingSuggestion(ctx context.Context, brandID string, typ model.SuggestionType) (bool, error)
	ListSuggestions(ctx context.Context, status model.SuggestionStatus) ([]model.AdjustmentSuggestion, error)
	ResolveSuggestion(ctx context.Context, id string, status model.SuggestionStatus) (*model.AdjustmentSuggestion, error)

	// WithBrandLock runs fn while holding an exclusive per-brand lock so
	// concurrent pipeline runs never interleave writes for one brand.
	WithBrandLock(ctx context.Context, brandID string, fn func(context.Context) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
