package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

func testCfg() config.VerifyConfig {
	return config.VerifyConfig{TimingToleranceDays: 7, DiscountTolerancePercent: 10.0}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func fp(v float64) *float64 { return &v }

func prediction() model.Prediction {
	return model.Prediction{
		ID:              "p1",
		BrandID:         "brand-1",
		SourceWindowID:  "w1",
		TargetYear:      2025,
		PredictedStart:  day(2025, time.November, 28),
		PredictedEnd:    day(2025, time.December, 1),
		DiscountSummary: "25% off sitewide",
		Confidence:      0.85,
	}
}

func evidenceSale(id string, start time.Time, value *float64, confidence float64) model.DetectedSale {
	return model.DetectedSale{
		ID:            id,
		BrandID:       "brand-1",
		DiscountType:  model.DiscountPercentOff,
		DiscountValue: value,
		SaleStart:     &start,
		Confidence:    confidence,
		ReviewStatus:  model.ReviewApproved,
		SourceDate:    start,
	}
}

func TestParseDiscount(t *testing.T) {
	cases := []struct {
		text  string
		value float64
		ok    bool
	}{
		{"25% off sitewide", 25, true},
		{"Up to 40% off select styles", 40, true},
		{"BOGO 50", 50, true},
		{"free shipping", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		v, ok := ParseDiscount(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.value, v, tc.text)
	}
}

func TestAssess_NoEvidenceIsMiss(t *testing.T) {
	now := day(2025, time.December, 15)
	outcome := Assess(prediction(), nil, testCfg(), now)

	assert.Equal(t, model.ResultMiss, outcome.AutoResult)
	assert.Equal(t, "p1", outcome.PredictionID)
	require.NotNil(t, outcome.AutoVerifiedAt)
	assert.Nil(t, outcome.TimingDeltaDays)
	assert.Nil(t, outcome.DiscountDelta)
	assert.Empty(t, outcome.MatchedSaleIDs)
	assert.False(t, outcome.ManualOverride)
}

func TestAssess_ExactMatchIsHit(t *testing.T) {
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 28), fp(25.0), 0.9),
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 15))

	assert.Equal(t, model.ResultHit, outcome.AutoResult)
	require.NotNil(t, outcome.TimingDeltaDays)
	assert.Equal(t, 0, *outcome.TimingDeltaDays)
	require.NotNil(t, outcome.DiscountDelta)
	assert.Equal(t, 0.0, *outcome.DiscountDelta)
	assert.Equal(t, []string{"s1"}, outcome.MatchedSaleIDs)
}

func TestAssess_TimingOutsideToleranceIsPartial(t *testing.T) {
	// Ten days late, discount exact.
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.December, 8), fp(25.0), 0.9),
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 20))

	assert.Equal(t, model.ResultPartial, outcome.AutoResult)
	require.NotNil(t, outcome.TimingDeltaDays)
	assert.Equal(t, 10, *outcome.TimingDeltaDays)
}

func TestAssess_EarlyStartGivesNegativeDelta(t *testing.T) {
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 25), fp(25.0), 0.9),
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 15))

	assert.Equal(t, model.ResultHit, outcome.AutoResult)
	require.NotNil(t, outcome.TimingDeltaDays)
	assert.Equal(t, -3, *outcome.TimingDeltaDays)
}

func TestAssess_DiscountOutsideToleranceIsPartial(t *testing.T) {
	// On time, but 12 points deeper than predicted.
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 28), fp(37.0), 0.9),
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 15))

	assert.Equal(t, model.ResultPartial, outcome.AutoResult)
	require.NotNil(t, outcome.DiscountDelta)
	assert.Equal(t, 12.0, *outcome.DiscountDelta)
}

func TestAssess_UnknownDiscountDoesNotDemote(t *testing.T) {
	// Evidence carries no discount value; timing alone decides.
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 28), nil, 0.9),
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 15))

	assert.Equal(t, model.ResultHit, outcome.AutoResult)
	assert.Nil(t, outcome.DiscountDelta)
	assert.Nil(t, outcome.ActualDiscount)
}

func TestAssess_UnparsableSummarySkipsDiscountDelta(t *testing.T) {
	p := prediction()
	p.DiscountSummary = "buy one get one free"
	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 28), fp(50.0), 0.9),
	}
	outcome := Assess(p, evidence, testCfg(), day(2025, time.December, 15))

	assert.Equal(t, model.ResultHit, outcome.AutoResult)
	assert.Nil(t, outcome.DiscountDelta)
	require.NotNil(t, outcome.ActualDiscount)
	assert.Equal(t, 50.0, *outcome.ActualDiscount)
}

func TestAssess_AggregatesMultipleSales(t *testing.T) {
	s2Start := day(2025, time.November, 30)
	s2End := day(2025, time.December, 2)
	s2 := evidenceSale("s2", s2Start, fp(30.0), 0.95)
	s2.SaleEnd = &s2End

	evidence := []model.DetectedSale{
		evidenceSale("s1", day(2025, time.November, 28), fp(25.0), 0.7),
		s2,
	}
	outcome := Assess(prediction(), evidence, testCfg(), day(2025, time.December, 15))

	require.NotNil(t, outcome.ActualStart)
	require.NotNil(t, outcome.ActualEnd)
	assert.Equal(t, day(2025, time.November, 28), *outcome.ActualStart)
	assert.Equal(t, day(2025, time.December, 2), *outcome.ActualEnd)
	// Highest-confidence member supplies the discount.
	require.NotNil(t, outcome.ActualDiscount)
	assert.Equal(t, 30.0, *outcome.ActualDiscount)
	assert.Equal(t, []string{"s1", "s2"}, outcome.MatchedSaleIDs)
}

type fakeStore struct {
	store.Store

	due      []model.Prediction
	evidence []model.DetectedSale

	upserted []model.PredictionOutcome
}

func (f *fakeStore) ListDuePredictions(_ context.Context, _ string, _ time.Time, _ int) ([]model.Prediction, error) {
	return f.due, nil
}

func (f *fakeStore) ListApprovedSalesInRange(_ context.Context, _ string, _, _ time.Time) ([]model.DetectedSale, error) {
	return f.evidence, nil
}

func (f *fakeStore) UpsertAutoOutcome(_ context.Context, o model.PredictionOutcome) error {
	f.upserted = append(f.upserted, o)
	return nil
}

func TestServiceRun_SummarizesResults(t *testing.T) {
	st := &fakeStore{
		due: []model.Prediction{prediction()},
		evidence: []model.DetectedSale{
			evidenceSale("s1", day(2025, time.November, 28), fp(25.0), 0.9),
		},
	}
	svc := NewService(st, testCfg())

	summary, err := svc.Run(context.Background(), model.Brand{ID: "brand-1", Slug: "acme"}, day(2025, time.December, 15))
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Hits: 1}, summary)
	require.Len(t, st.upserted, 1)
	assert.Equal(t, model.ResultHit, st.upserted[0].AutoResult)
}

func TestServiceRun_NoDuePredictionsIsNoop(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(st, testCfg())

	summary, err := svc.Run(context.Background(), model.Brand{ID: "brand-1", Slug: "acme"}, day(2025, time.December, 15))
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, st.upserted)
}

func TestServiceRun_MissLeavesManualFieldsEmpty(t *testing.T) {
	st := &fakeStore{due: []model.Prediction{prediction()}}
	svc := NewService(st, testCfg())

	summary, err := svc.Run(context.Background(), model.Brand{ID: "brand-1", Slug: "acme"}, day(2025, time.December, 15))
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Misses: 1}, summary)
	require.Len(t, st.upserted, 1)
	assert.False(t, st.upserted[0].ManualOverride)
	assert.Equal(t, model.ResultNone, st.upserted[0].ManualResult)
}
