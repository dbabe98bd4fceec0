// Package dedup clusters detected sales into canonical sale windows.
package dedup

import (
	"time"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// Group is an intermediate cluster of related detected sales.
type Group struct {
	Members       []model.DetectedSale
	StartDate     time.Time
	EndDate       time.Time
	DiscountType  model.DiscountType
	DiscountValue *float64
	Categories    map[string]struct{}

	// bestConfidence is the confidence of the member that contributed
	// DiscountValue.
	bestConfidence float64
}

// datesOverlap reports whether two date ranges overlap once each is padded
// by proximityDays on both sides.
func datesOverlap(start1, end1, start2, end2 time.Time, proximityDays int) bool {
	s1 := start1.AddDate(0, 0, -proximityDays)
	e1 := end1.AddDate(0, 0, proximityDays)
	s2 := start2.AddDate(0, 0, -proximityDays)
	e2 := end2.AddDate(0, 0, proximityDays)
	return !s1.After(e2) && !s2.After(e1)
}

// discountsMatch reports whether two discounts are similar enough to group:
// identical types, and values within tolerance when both are present. A
// missing value on either side still matches on type alone.
func discountsMatch(type1 model.DiscountType, value1 *float64, type2 model.DiscountType, value2 *float64, tolerance float64) bool {
	if type1 != type2 {
		return false
	}
	if value1 != nil && value2 != nil {
		diff := *value1 - *value2
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
	return true
}

// Cluster groups sales in arrival order using greedy single-pass matching.
// A sale joins the first group whose padded span overlaps and whose discount
// matches; otherwise it starts a new group. Every input sale ends up in
// exactly one group.
func Cluster(sales []model.DetectedSale, cfg config.DedupConfig) []Group {
	if len(sales) == 0 {
		return nil
	}

	var groups []Group

	for _, sale := range sales {
		start, end := sale.EffectiveDates()

		matched := -1
		for i := range groups {
			if !datesOverlap(start, end, groups[i].StartDate, groups[i].EndDate, cfg.ProximityDays) {
				continue
			}
			if discountsMatch(sale.DiscountType, sale.DiscountValue, groups[i].DiscountType, groups[i].DiscountValue, cfg.DiscountTolerance) {
				matched = i
				break
			}
		}

		if matched < 0 {
			g := Group{
				Members:       []model.DetectedSale{sale},
				StartDate:     start,
				EndDate:       end,
				DiscountType:  sale.DiscountType,
				DiscountValue: sale.DiscountValue,
				Categories:    make(map[string]struct{}),
			}
			if sale.DiscountValue != nil {
				g.bestConfidence = sale.Confidence
			}
			for _, c := range sale.Categories {
				g.Categories[c] = struct{}{}
			}
			groups = append(groups, g)
			continue
		}

		g := &groups[matched]
		g.Members = append(g.Members, sale)
		if start.Before(g.StartDate) {
			g.StartDate = start
		}
		if end.After(g.EndDate) {
			g.EndDate = end
		}
		for _, c := range sale.Categories {
			g.Categories[c] = struct{}{}
		}
		// Keep the discount value of the most confident member.
		if sale.DiscountValue != nil && (g.DiscountValue == nil || sale.Confidence > g.bestConfidence) {
			g.DiscountValue = sale.DiscountValue
			g.bestConfidence = sale.Confidence
		}
	}

	return groups
}
