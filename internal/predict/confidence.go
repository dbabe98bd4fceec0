// Package predict projects prior-year sale windows into a target year.
package predict

import (
	"strings"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// Confidence scores a prediction candidate from its source window and the
// brand's historical windows. anchor is the resolved holiday anchor for the
// source window ("" when unanchored). All weights come from cfg.
//
// A historical window counts as precedent when it starts within
// SimilarDayWindow days of the source's month/day, or shares the source's
// holiday anchor. Each window is counted once even when it satisfies both
// conditions, and precedent credit accrues per distinct prior year.
func Confidence(source model.SaleWindow, anchor string, history []model.SaleWindow, cfg config.PredictConfig) float64 {
	confidence := cfg.BaseConfidence

	if anchor != "" {
		confidence += cfg.HolidayBonus
	}

	sourceMonth := source.StartDate.Month()
	sourceDay := source.StartDate.Day()

	var similar []model.SaleWindow
	years := make(map[int]struct{})
	seen := make(map[string]struct{})

	for _, w := range history {
		if w.ID == source.ID || w.Year == source.Year {
			continue
		}
		if _, dup := seen[w.ID]; dup {
			continue
		}

		dayDiff := w.StartDate.Day() - sourceDay
		if dayDiff < 0 {
			dayDiff = -dayDiff
		}
		sameTiming := w.StartDate.Month() == sourceMonth && dayDiff <= cfg.SimilarDayWindow
		sameAnchor := anchor != "" && w.HolidayAnchor == anchor

		if sameTiming || sameAnchor {
			seen[w.ID] = struct{}{}
			similar = append(similar, w)
			years[w.Year] = struct{}{}
		}
	}

	historyBonus := float64(len(years)) * cfg.PerYearBonus
	if historyBonus > cfg.MaxHistoryBonus {
		historyBonus = cfg.MaxHistoryBonus
	}
	confidence += historyBonus

	if source.DiscountSummary != "" {
		for _, w := range similar {
			if strings.EqualFold(w.DiscountSummary, source.DiscountSummary) {
				confidence += cfg.DiscountMatchBonus
				break
			}
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
