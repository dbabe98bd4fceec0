package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

func testCfg() config.PredictConfig {
	return config.PredictConfig{
		BaseConfidence:     0.5,
		HolidayBonus:       0.15,
		PerYearBonus:       0.10,
		MaxHistoryBonus:    0.25,
		DiscountMatchBonus: 0.10,
		MinConfidence:      0.6,
		SimilarDayWindow:   5,
		AnchorMaxDays:      7,
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func window(id string, year int, start time.Time, opts ...func(*model.SaleWindow)) model.SaleWindow {
	w := model.SaleWindow{
		ID:              id,
		BrandID:         "brand-1",
		Name:            "Acme November 25% Off",
		DiscountSummary: "25% off sitewide",
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 3),
		Year:            year,
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func withAnchor(anchor string) func(*model.SaleWindow) {
	return func(w *model.SaleWindow) { w.HolidayAnchor = anchor }
}

func withSummary(s string) func(*model.SaleWindow) {
	return func(w *model.SaleWindow) { w.DiscountSummary = s }
}

func TestConfidence_BaseOnly(t *testing.T) {
	src := window("w1", 2024, day(2024, time.June, 10))
	got := Confidence(src, "", nil, testCfg())
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestConfidence_AnchorBonus(t *testing.T) {
	src := window("w1", 2024, day(2024, time.November, 29))
	got := Confidence(src, "black_friday", nil, testCfg())
	assert.InDelta(t, 0.65, got, 1e-9)
}

func TestConfidence_PrecedentPerDistinctYear(t *testing.T) {
	src := window("w1", 2024, day(2024, time.November, 25))
	history := []model.SaleWindow{
		window("w2", 2023, day(2023, time.November, 24), withSummary("20% off")),
		window("w3", 2022, day(2022, time.November, 26), withSummary("30% off")),
	}
	// 0.5 base + two precedent years.
	got := Confidence(src, "", history, testCfg())
	assert.InDelta(t, 0.70, got, 1e-9)
}

func TestConfidence_HistoryBonusCapped(t *testing.T) {
	src := window("w1", 2025, day(2025, time.November, 24))
	var history []model.SaleWindow
	for year := 2020; year < 2025; year++ {
		history = append(history, window("h"+string(rune('a'+year-2020)), year,
			day(year, time.November, 24), withSummary("20% off")))
	}
	// Five precedent years would be 0.50 of bonus; capped at 0.25.
	got := Confidence(src, "", history, testCfg())
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestConfidence_DiscountMatchBonus(t *testing.T) {
	src := window("w1", 2024, day(2024, time.November, 25))
	history := []model.SaleWindow{
		window("w2", 2023, day(2023, time.November, 24), withSummary("25% OFF Sitewide")),
	}
	// Base + one precedent year + case-insensitive discount match.
	got := Confidence(src, "", history, testCfg())
	assert.InDelta(t, 0.70, got, 1e-9)
}

func TestConfidence_AnchorMatchCountsAsPrecedent(t *testing.T) {
	// Anchored windows count even when the calendar dates differ by weeks.
	src := window("w1", 2024, day(2024, time.November, 29), withAnchor("black_friday"))
	history := []model.SaleWindow{
		window("w2", 2023, day(2023, time.November, 15),
			withAnchor("black_friday"), withSummary("20% off")),
	}
	got := Confidence(src, "black_friday", history, testCfg())
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestConfidence_IgnoresSelfAndSameYear(t *testing.T) {
	src := window("w1", 2024, day(2024, time.November, 25))
	history := []model.SaleWindow{
		src,
		window("w2", 2024, day(2024, time.November, 26), withSummary("20% off")),
	}
	got := Confidence(src, "", history, testCfg())
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestConfidence_DuplicateWindowsCountOnce(t *testing.T) {
	src := window("w1", 2024, day(2024, time.November, 25))
	dup := window("w2", 2023, day(2023, time.November, 24), withSummary("20% off"))
	got := Confidence(src, "", []model.SaleWindow{dup, dup, dup}, testCfg())
	assert.InDelta(t, 0.60, got, 1e-9)
}

func TestConfidence_CappedAtOne(t *testing.T) {
	cfg := testCfg()
	cfg.BaseConfidence = 0.9
	src := window("w1", 2024, day(2024, time.November, 29), withAnchor("black_friday"))
	history := []model.SaleWindow{
		window("w2", 2023, day(2023, time.November, 24), withAnchor("black_friday")),
		window("w3", 2022, day(2022, time.November, 25), withAnchor("black_friday")),
	}
	got := Confidence(src, "black_friday", history, cfg)
	assert.Equal(t, 1.0, got)
}

func TestConfidence_MonotonicInHistory(t *testing.T) {
	src := window("w1", 2025, day(2025, time.November, 24))
	var history []model.SaleWindow
	prev := Confidence(src, "", history, testCfg())
	for year := 2024; year >= 2020; year-- {
		history = append(history, window("h"+string(rune('a'+year-2020)), year,
			day(year, time.November, 24), withSummary("20% off")))
		got := Confidence(src, "", history, testCfg())
		assert.GreaterOrEqual(t, got, prev, "adding history must never lower confidence")
		prev = got
	}
}
