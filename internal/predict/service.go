package predict

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/holiday"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

// Service generates predictions against the store.
type Service struct {
	store store.Store
	cfg   config.PredictConfig
}

// NewService creates a prediction service.
func NewService(st store.Store, cfg config.PredictConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// Run generates predictions for one brand and target year. Seeds are the
// brand's windows from the prior year; history is everything before the
// target year. Windows that already have a prediction for the target year
// are skipped, so reruns are safe. All accepted candidates are persisted
// as one batch. The caller is expected to hold the brand's lock.
func (s *Service) Run(ctx context.Context, brand model.Brand, targetYear int) ([]model.Prediction, error) {
	log := zap.L().With(
		zap.String("component", "predict"),
		zap.String("brand", brand.Slug),
		zap.Int("target_year", targetYear),
	)

	seeds, err := s.store.ListWindowsByYear(ctx, brand.ID, targetYear-1)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: list seed windows for %s", brand.Slug)
	}
	if len(seeds) == 0 {
		log.Debug("no seed windows")
		return nil, nil
	}

	history, err := s.store.ListWindowsBefore(ctx, brand.ID, targetYear)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: list history for %s", brand.Slug)
	}

	existing, err := s.store.ListPredictionsForYear(ctx, brand.ID, targetYear)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: list existing predictions for %s", brand.Slug)
	}
	predicted := make(map[string]bool, len(existing))
	for _, p := range existing {
		predicted[p.SourceWindowID] = true
	}

	refs, err := s.referenceURLs(ctx, seeds)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: resolve reference urls for %s", brand.Slug)
	}

	gen := NewGenerator(s.cfg, holiday.NewCalendar(), targetYear)
	predictions, err := gen.Generate(seeds, history, predicted, refs)
	if err != nil {
		return nil, err
	}
	if len(predictions) == 0 {
		log.Info("no candidates accepted", zap.Int("seeds", len(seeds)))
		return nil, nil
	}

	if err := s.store.CreatePredictions(ctx, predictions); err != nil {
		return nil, eris.Wrapf(err, "predict: create predictions for %s", brand.Slug)
	}

	log.Info("prediction complete",
		zap.Int("seeds", len(seeds)),
		zap.Int("predictions", len(predictions)),
	)
	return predictions, nil
}

// referenceURLs maps each seed window to the source URL of its earliest
// member sale that carries one.
func (s *Service) referenceURLs(ctx context.Context, seeds []model.SaleWindow) (map[string]string, error) {
	var ids []string
	for _, w := range seeds {
		ids = append(ids, w.MemberSaleIDs...)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	sales, err := s.store.ListSalesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.DetectedSale, len(sales))
	for _, sale := range sales {
		byID[sale.ID] = sale
	}

	refs := make(map[string]string, len(seeds))
	for _, w := range seeds {
		for _, saleID := range w.MemberSaleIDs {
			sale, ok := byID[saleID]
			if !ok || sale.SourceURL == "" {
				continue
			}
			if _, seen := refs[w.ID]; !seen {
				refs[w.ID] = sale.SourceURL
			}
		}
	}
	return refs, nil
}
