package predict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

type fakeStore struct {
	store.Store

	windowsByYear map[int][]model.SaleWindow
	history       []model.SaleWindow
	existing      []model.Prediction
	sales         []model.DetectedSale

	created []model.Prediction
}

func (f *fakeStore) ListWindowsByYear(_ context.Context, _ string, year int) ([]model.SaleWindow, error) {
	return f.windowsByYear[year], nil
}

func (f *fakeStore) ListWindowsBefore(_ context.Context, _ string, _ int) ([]model.SaleWindow, error) {
	return f.history, nil
}

func (f *fakeStore) ListPredictionsForYear(_ context.Context, _ string, _ int) ([]model.Prediction, error) {
	return f.existing, nil
}

func (f *fakeStore) ListSalesByIDs(_ context.Context, ids []string) ([]model.DetectedSale, error) {
	var out []model.DetectedSale
	for _, s := range f.sales {
		for _, id := range ids {
			if s.ID == id {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePredictions(_ context.Context, preds []model.Prediction) error {
	f.created = append(f.created, preds...)
	return nil
}

func testBrand() model.Brand {
	return model.Brand{ID: "brand-1", Name: "Acme", Slug: "acme", Active: true}
}

func TestServiceRun_PersistsBatch(t *testing.T) {
	seed := window("w1", 2024, day(2024, time.November, 29), withAnchor("black_friday"))
	seed.MemberSaleIDs = []string{"s1"}

	st := &fakeStore{
		windowsByYear: map[int][]model.SaleWindow{2024: {seed}},
		sales: []model.DetectedSale{{
			ID:        "s1",
			BrandID:   "brand-1",
			SourceURL: "https://example.com/bf",
		}},
	}

	svc := NewService(st, testCfg())
	preds, err := svc.Run(context.Background(), testBrand(), 2025)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, preds, st.created)
	assert.Equal(t, "https://example.com/bf", preds[0].ReferenceURL)
}

func TestServiceRun_NoSeedsIsNoop(t *testing.T) {
	st := &fakeStore{windowsByYear: map[int][]model.SaleWindow{}}
	svc := NewService(st, testCfg())
	preds, err := svc.Run(context.Background(), testBrand(), 2025)
	require.NoError(t, err)
	assert.Nil(t, preds)
	assert.Empty(t, st.created)
}

func TestServiceRun_RerunCreatesNothing(t *testing.T) {
	seed := window("w1", 2024, day(2024, time.November, 29), withAnchor("black_friday"))
	st := &fakeStore{
		windowsByYear: map[int][]model.SaleWindow{2024: {seed}},
		existing:      []model.Prediction{{ID: "p1", SourceWindowID: "w1", TargetYear: 2025}},
	}

	svc := NewService(st, testCfg())
	preds, err := svc.Run(context.Background(), testBrand(), 2025)
	require.NoError(t, err)
	assert.Nil(t, preds)
	assert.Empty(t, st.created)
}
