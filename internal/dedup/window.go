package dedup

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/salewatch-cli/internal/holiday"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// discountLabel renders a short discount phrase for window names.
func discountLabel(discountType model.DiscountType, value *float64) string {
	switch {
	case discountType == model.DiscountPercentOff && value != nil:
		return fmt.Sprintf("%d%% Off", int(*value))
	case discountType == model.DiscountBOGO:
		return "BOGO"
	case discountType == model.DiscountFreeShipping:
		return "Free Shipping"
	case discountType == model.DiscountFixedPrice && value != nil:
		return fmt.Sprintf("$%d Sale", int(*value))
	default:
		return "Sale"
	}
}

// saleName synthesizes a descriptive window name from the brand, the
// window's starting month and the discount.
func saleName(brandName string, discountType model.DiscountType, value *float64, start time.Time) string {
	return fmt.Sprintf("%s %s %s", brandName, start.Month().String(), discountLabel(discountType, value))
}

// discountSummary renders the human-readable discount summary stored on the
// window and carried into predictions.
func discountSummary(discountType model.DiscountType, value *float64, sitewide bool) string {
	var base string
	switch {
	case discountType == model.DiscountPercentOff && value != nil:
		base = fmt.Sprintf("%d%% off", int(*value))
	case discountType == model.DiscountBOGO:
		base = "Buy one get one"
	case discountType == model.DiscountFreeShipping:
		base = "Free shipping"
	case discountType == model.DiscountFixedPrice && value != nil:
		base = fmt.Sprintf("Starting at $%d", int(*value))
	default:
		base = "Special promotion"
	}
	if sitewide {
		base += " sitewide"
	}
	return base
}

// BuildWindow synthesizes a sale window from a finished group. The sitewide
// flag is a majority vote across members; the holiday anchor is detected
// from the window's start date when one is near enough.
func BuildWindow(brand model.Brand, g Group, cal *holiday.Calendar) model.SaleWindow {
	sitewideCount := 0
	for _, m := range g.Members {
		if m.Sitewide {
			sitewideCount++
		}
	}
	sitewide := sitewideCount*2 > len(g.Members)

	memberIDs := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		memberIDs = append(memberIDs, m.ID)
	}

	categories := make([]string, 0, len(g.Categories))
	for c := range g.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	anchor := ""
	if a, ok := cal.DetectAnchor(g.StartDate); ok {
		anchor = string(a)
	}

	return model.SaleWindow{
		ID:              uuid.New().String(),
		BrandID:         brand.ID,
		Name:            saleName(brand.Name, g.DiscountType, g.DiscountValue, g.StartDate),
		DiscountSummary: discountSummary(g.DiscountType, g.DiscountValue, sitewide),
		StartDate:       g.StartDate,
		EndDate:         g.EndDate,
		HolidayAnchor:   anchor,
		Sitewide:        sitewide,
		Categories:      categories,
		Year:            g.StartDate.Year(),
		MemberSaleIDs:   memberIDs,
		CreatedAt:       time.Now().UTC(),
	}
}
