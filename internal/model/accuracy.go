package model

import "time"

// ReliabilityTier buckets a brand's hit rate into a coarse quality grade.
type ReliabilityTier string

const (
	TierExcellent ReliabilityTier = "excellent"
	TierGood      ReliabilityTier = "good"
	TierFair      ReliabilityTier = "fair"
	TierPoor      ReliabilityTier = "poor"
)

// BrandAccuracyStats is the materialized accuracy record for one brand.
// Always fully recomputed from the brand's outcome history, never patched.
type BrandAccuracyStats struct {
	ID                 string          `json:"id"`
	BrandID            string          `json:"brand_id"`
	TotalPredictions   int             `json:"total_predictions"`
	CorrectPredictions int             `json:"correct_predictions"`
	PartialPredictions int             `json:"partial_predictions"`
	MissedPredictions  int             `json:"missed_predictions"`
	HitRate            float64         `json:"hit_rate"`
	AvgTimingDeltaDays *float64        `json:"avg_timing_delta_days,omitempty"`
	TimingDeltaStd     *float64        `json:"timing_delta_std,omitempty"`
	AvgDiscountDelta   *float64        `json:"avg_discount_delta,omitempty"`
	ReliabilityScore   int             `json:"reliability_score"`
	ReliabilityTier    ReliabilityTier `json:"reliability_tier"`
	LastCalculatedAt   time.Time       `json:"last_calculated_at"`
}

// SuggestionStatus is the lifecycle state of an adjustment suggestion.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionApproved  SuggestionStatus = "approved"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// SuggestionType names the class of systematic error a suggestion addresses.
type SuggestionType string

const (
	SuggestionAccuracyDrop SuggestionType = "accuracy_drop"
	SuggestionTimingDrift  SuggestionType = "timing_drift"
)

// AdjustmentSuggestion is an advisory record emitted by the accuracy
// aggregator and resolved by a human.
type AdjustmentSuggestion struct {
	ID                string           `json:"id"`
	BrandID           string           `json:"brand_id"`
	Type              SuggestionType   `json:"type"`
	Description       string           `json:"description"`
	RecommendedAction string           `json:"recommended_action"`
	SupportingData    map[string]any   `json:"supporting_data,omitempty"`
	Status            SuggestionStatus `json:"status"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// OverallStats is the cross-brand rollup computed from stored per-brand
// stats records.
type OverallStats struct {
	TotalPredictions   int      `json:"total_predictions"`
	CorrectPredictions int      `json:"correct_predictions"`
	HitRate            float64  `json:"hit_rate"`
	BrandsTracked      int      `json:"brands_tracked"`
	AvgTimingDeltaDays *float64 `json:"avg_timing_delta_days,omitempty"`
}
