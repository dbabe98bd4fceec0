package model

import "time"

// SaleWindow is one canonical promotional event, synthesized from one or
// more detected sales. Each detected sale belongs to at most one window.
type SaleWindow struct {
	ID              string    `json:"id"`
	BrandID         string    `json:"brand_id"`
	Name            string    `json:"name"`
	DiscountSummary string    `json:"discount_summary"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	HolidayAnchor   string    `json:"holiday_anchor,omitempty"`
	Sitewide        bool      `json:"sitewide"`
	Categories      []string  `json:"categories,omitempty"`
	Year            int       `json:"year"`
	MemberSaleIDs   []string  `json:"member_sale_ids"`
	CreatedAt       time.Time `json:"created_at"`
}
