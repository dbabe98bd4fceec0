package model

import "time"

// Prediction projects a source sale window into a target year. At most one
// prediction exists per (source window, target year) pair.
type Prediction struct {
	ID              string     `json:"id"`
	BrandID         string     `json:"brand_id"`
	SourceWindowID  string     `json:"source_window_id"`
	TargetYear      int        `json:"target_year"`
	PredictedStart  time.Time  `json:"predicted_start"`
	PredictedEnd    time.Time  `json:"predicted_end"`
	DiscountSummary string     `json:"discount_summary"`
	HolidayAnchor   string     `json:"holiday_anchor,omitempty"`
	ReferenceURL    string     `json:"reference_url,omitempty"`
	Confidence      float64    `json:"confidence"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
	NotifiedAt      *time.Time `json:"notified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Result is a verification outcome classification.
type Result string

const (
	ResultHit     Result = "hit"
	ResultMiss    Result = "miss"
	ResultPartial Result = "partial"
	// ResultNone marks an outcome not yet verified.
	ResultNone Result = ""
)

// PredictionOutcome records how a prediction turned out. One per prediction.
// The automated fields and the manual-override fields are independent; once
// ManualOverride is set the manual result is authoritative permanently.
type PredictionOutcome struct {
	ID              string     `json:"id"`
	PredictionID    string     `json:"prediction_id"`
	AutoResult      Result     `json:"auto_result,omitempty"`
	AutoVerifiedAt  *time.Time `json:"auto_verified_at,omitempty"`
	MatchedSaleIDs  []string   `json:"matched_sale_ids,omitempty"`
	ManualOverride  bool       `json:"manual_override"`
	ManualResult    Result     `json:"manual_result,omitempty"`
	OverrideReason  string     `json:"override_reason,omitempty"`
	OverriddenAt    *time.Time `json:"overridden_at,omitempty"`
	ActualStart     *time.Time `json:"actual_start,omitempty"`
	ActualEnd       *time.Time `json:"actual_end,omitempty"`
	ActualDiscount  *float64   `json:"actual_discount,omitempty"`
	TimingDeltaDays *int       `json:"timing_delta_days,omitempty"`
	DiscountDelta   *float64   `json:"discount_delta,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// EffectiveResult returns the manual result when overridden, the automated
// result otherwise.
func (o PredictionOutcome) EffectiveResult() Result {
	if o.ManualOverride {
		return o.ManualResult
	}
	return o.AutoResult
}

// Verified reports whether the outcome carries any result, manual or automated.
func (o PredictionOutcome) Verified() bool {
	return o.EffectiveResult() != ResultNone
}
