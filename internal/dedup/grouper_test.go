package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/holiday"
	"github.com/sells-group/salewatch-cli/internal/model"
)

func testCfg() config.DedupConfig {
	return config.DedupConfig{ProximityDays: 3, DiscountTolerance: 5.0}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func fp(v float64) *float64 { return &v }

func sale(id string, discountType model.DiscountType, value *float64, start time.Time, opts ...func(*model.DetectedSale)) model.DetectedSale {
	s := model.DetectedSale{
		ID:           id,
		BrandID:      "brand-1",
		DiscountType: discountType,
		DiscountValue: value,
		SaleStart:    &start,
		Confidence:   0.8,
		ReviewStatus: model.ReviewApproved,
		SourceDate:   start,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func TestCluster_Empty(t *testing.T) {
	assert.Nil(t, Cluster(nil, testCfg()))
	assert.Nil(t, Cluster([]model.DetectedSale{}, testCfg()))
}

func TestCluster_MergesCloseSimilarDiscounts(t *testing.T) {
	// 25% and 28%, three days apart: one window.
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.November, 25)),
		sale("s2", model.DiscountPercentOff, fp(28.0), day(2024, time.November, 28)),
	}
	groups := Cluster(sales, testCfg())
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
	assert.Equal(t, day(2024, time.November, 25), groups[0].StartDate)
	assert.Equal(t, day(2024, time.November, 28), groups[0].EndDate)
}

func TestCluster_RejectsDistantDiscountValues(t *testing.T) {
	// 25% and 40%: beyond the 5-point tolerance, two windows.
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.November, 25)),
		sale("s2", model.DiscountPercentOff, fp(40.0), day(2024, time.November, 28)),
	}
	groups := Cluster(sales, testCfg())
	assert.Len(t, groups, 2)
}

func TestCluster_ToleranceBoundary(t *testing.T) {
	// Exactly 5 points apart merges; 5.01 does not.
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.June, 1)),
		sale("s2", model.DiscountPercentOff, fp(30.0), day(2024, time.June, 2)),
	}
	assert.Len(t, Cluster(sales, testCfg()), 1)

	sales[1].DiscountValue = fp(30.01)
	assert.Len(t, Cluster(sales, testCfg()), 2)
}

func TestCluster_DifferentTypesNeverMerge(t *testing.T) {
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.June, 1)),
		sale("s2", model.DiscountFreeShipping, nil, day(2024, time.June, 1)),
	}
	assert.Len(t, Cluster(sales, testCfg()), 2)
}

func TestCluster_MissingValueMatchesOnType(t *testing.T) {
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.June, 1)),
		sale("s2", model.DiscountPercentOff, nil, day(2024, time.June, 2)),
	}
	groups := Cluster(sales, testCfg())
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].DiscountValue)
	assert.InDelta(t, 25.0, *groups[0].DiscountValue, 0.001)
}

func TestCluster_ProximityPadding(t *testing.T) {
	// Six days apart: padded spans (±3) touch, so they merge.
	sales := []model.DetectedSale{
		sale("s1", model.DiscountPercentOff, fp(20.0), day(2024, time.June, 1)),
		sale("s2", model.DiscountPercentOff, fp(20.0), day(2024, time.June, 7)),
	}
	assert.Len(t, Cluster(sales, testCfg()), 1)

	// Eight days apart: no overlap even padded.
	sales[1] = sale("s2", model.DiscountPercentOff, fp(20.0), day(2024, time.June, 9))
	assert.Len(t, Cluster(sales, testCfg()), 2)
}

func TestCluster_KeepsMostConfidentDiscountValue(t *testing.T) {
	low := sale("s1", model.DiscountPercentOff, fp(20.0), day(2024, time.June, 1))
	low.Confidence = 0.6
	high := sale("s2", model.DiscountPercentOff, fp(24.0), day(2024, time.June, 2))
	high.Confidence = 0.95

	groups := Cluster([]model.DetectedSale{low, high}, testCfg())
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].DiscountValue)
	assert.InDelta(t, 24.0, *groups[0].DiscountValue, 0.001)
}

func TestCluster_FallsBackToSourceDate(t *testing.T) {
	s := sale("s1", model.DiscountPercentOff, fp(20.0), day(2024, time.June, 1))
	s.SaleStart = nil
	s.SaleEnd = nil
	s.SourceDate = day(2024, time.July, 4)

	groups := Cluster([]model.DetectedSale{s}, testCfg())
	require.Len(t, groups, 1)
	assert.Equal(t, day(2024, time.July, 4), groups[0].StartDate)
	assert.Equal(t, day(2024, time.July, 4), groups[0].EndDate)
}

func TestCluster_EverySaleInExactlyOneGroup(t *testing.T) {
	var sales []model.DetectedSale
	for i := 0; i < 9; i++ {
		sales = append(sales, sale(
			string(rune('a'+i)),
			model.DiscountPercentOff,
			fp(float64(10+i*7%40)),
			day(2024, time.June, 1+i*4),
		))
	}
	groups := Cluster(sales, testCfg())

	seen := map[string]int{}
	for _, g := range groups {
		for _, m := range g.Members {
			seen[m.ID]++
		}
	}
	assert.Len(t, seen, len(sales))
	for id, n := range seen {
		assert.Equal(t, 1, n, "sale %s", id)
	}
}

func TestBuildWindow_SynthesisAndMajorityVote(t *testing.T) {
	brand := model.Brand{ID: "brand-1", Name: "Acme", Slug: "acme"}
	s1 := sale("s1", model.DiscountPercentOff, fp(25.0), day(2024, time.November, 25))
	s1.Sitewide = true
	s1.Categories = []string{"shoes"}
	s2 := sale("s2", model.DiscountPercentOff, fp(28.0), day(2024, time.November, 28))
	s2.Sitewide = true
	s2.Categories = []string{"apparel"}
	s3 := sale("s3", model.DiscountPercentOff, fp(26.0), day(2024, time.November, 29))

	groups := Cluster([]model.DetectedSale{s1, s2, s3}, testCfg())
	require.Len(t, groups, 1)

	w := BuildWindow(brand, groups[0], holiday.NewCalendar())
	assert.Equal(t, "Acme November 25% Off", w.Name)
	assert.Equal(t, "25% off sitewide", w.DiscountSummary)
	assert.True(t, w.Sitewide)
	assert.Equal(t, 2024, w.Year)
	assert.Equal(t, []string{"apparel", "shoes"}, w.Categories)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, w.MemberSaleIDs)
	assert.Equal(t, string(holiday.Thanksgiving), w.HolidayAnchor)
	assert.False(t, w.EndDate.Before(w.StartDate))
}

func TestBuildWindow_SitewideMinorityLoses(t *testing.T) {
	brand := model.Brand{ID: "brand-1", Name: "Acme"}
	s1 := sale("s1", model.DiscountBOGO, nil, day(2024, time.June, 1))
	s1.Sitewide = true
	s2 := sale("s2", model.DiscountBOGO, nil, day(2024, time.June, 2))

	groups := Cluster([]model.DetectedSale{s1, s2}, testCfg())
	require.Len(t, groups, 1)

	w := BuildWindow(brand, groups[0], holiday.NewCalendar())
	assert.False(t, w.Sitewide)
	assert.Equal(t, "Buy one get one", w.DiscountSummary)
	assert.Equal(t, "Acme June BOGO", w.Name)
}
