package model

import "time"

// ReviewStatus is the human-review state of a detected sale.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// DiscountType classifies the promotion structure of a detected sale.
type DiscountType string

const (
	DiscountPercentOff   DiscountType = "percent_off"
	DiscountBOGO         DiscountType = "bogo"
	DiscountFreeShipping DiscountType = "free_shipping"
	DiscountFixedPrice   DiscountType = "fixed_price"
	DiscountOther        DiscountType = "other"
)

// DetectedSale is one structured sale record produced by the upstream
// extraction collaborator. Immutable once approved; this core only reads it.
type DetectedSale struct {
	ID            string       `json:"id"`
	BrandID       string       `json:"brand_id"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue *float64     `json:"discount_value,omitempty"`
	DiscountMax   *float64     `json:"discount_max,omitempty"`
	Sitewide      bool         `json:"sitewide"`
	Categories    []string     `json:"categories,omitempty"`
	SaleStart     *time.Time   `json:"sale_start,omitempty"`
	SaleEnd       *time.Time   `json:"sale_end,omitempty"`
	Confidence    float64      `json:"confidence"`
	ReviewStatus  ReviewStatus `json:"review_status"`
	SourceDate    time.Time    `json:"source_date"`
	SourceURL     string       `json:"source_url,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// EffectiveDates returns the sale's date span, falling back to the source
// document's date when the extraction carried no explicit dates.
func (s DetectedSale) EffectiveDates() (start, end time.Time) {
	start = Day(s.SourceDate)
	if s.SaleStart != nil {
		start = Day(*s.SaleStart)
	}
	end = start
	if s.SaleEnd != nil {
		end = Day(*s.SaleEnd)
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}
