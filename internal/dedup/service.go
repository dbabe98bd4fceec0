package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/holiday"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

// Service runs deduplication against the store.
type Service struct {
	store store.Store
	cfg   config.DedupConfig
}

// NewService creates a deduplication service.
func NewService(st store.Store, cfg config.DedupConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// Run clusters a brand's unprocessed approved sales into windows and
// persists them as one batch. Sales already linked to a window were
// excluded by the store query, so rerunning on unchanged input creates
// nothing. The caller is expected to hold the brand's lock.
func (s *Service) Run(ctx context.Context, brand model.Brand) ([]model.SaleWindow, error) {
	log := zap.L().With(zap.String("component", "dedup"), zap.String("brand", brand.Slug))

	sales, err := s.store.ListUnprocessedSales(ctx, brand.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "dedup: list unprocessed sales for %s", brand.Slug)
	}
	if len(sales) == 0 {
		log.Debug("no unprocessed sales")
		return nil, nil
	}

	cal := holiday.NewCalendar()
	groups := Cluster(sales, s.cfg)

	windows := make([]model.SaleWindow, 0, len(groups))
	for _, g := range groups {
		windows = append(windows, BuildWindow(brand, g, cal))
	}

	if err := s.store.CreateSaleWindows(ctx, windows); err != nil {
		return nil, eris.Wrapf(err, "dedup: create windows for %s", brand.Slug)
	}

	log.Info("deduplication complete",
		zap.Int("sales", len(sales)),
		zap.Int("windows", len(windows)),
	)
	return windows, nil
}
