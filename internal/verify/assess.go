// Package verify compares predictions against observed sale evidence and
// classifies each as hit, partial, or miss.
package verify

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// Assess builds the automated outcome for one prediction from its evidence
// sales. Evidence is expected to be the brand's approved sales whose
// effective dates fall inside the prediction's tolerance window; no
// evidence classifies as a miss. Only automated fields are populated.
func Assess(p model.Prediction, evidence []model.DetectedSale, cfg config.VerifyConfig, now time.Time) model.PredictionOutcome {
	verifiedAt := now.UTC()
	outcome := model.PredictionOutcome{
		ID:             uuid.New().String(),
		PredictionID:   p.ID,
		AutoVerifiedAt: &verifiedAt,
		CreatedAt:      verifiedAt,
	}

	if len(evidence) == 0 {
		outcome.AutoResult = model.ResultMiss
		return outcome
	}

	actualStart, actualEnd, actualDiscount := aggregate(evidence)
	outcome.ActualStart = &actualStart
	outcome.ActualEnd = &actualEnd
	outcome.ActualDiscount = actualDiscount
	for _, s := range evidence {
		outcome.MatchedSaleIDs = append(outcome.MatchedSaleIDs, s.ID)
	}

	// Negative delta means the sale started earlier than predicted.
	timingDelta := model.DaysBetween(model.Day(p.PredictedStart), actualStart)
	outcome.TimingDeltaDays = &timingDelta

	if predicted, ok := ParseDiscount(p.DiscountSummary); ok && actualDiscount != nil {
		delta := *actualDiscount - predicted
		outcome.DiscountDelta = &delta
	}

	outcome.AutoResult = classify(timingDelta, outcome.DiscountDelta, cfg)
	return outcome
}

// aggregate collapses evidence into one observed sale span. The discount
// comes from the highest-confidence sale that carries a value.
func aggregate(evidence []model.DetectedSale) (start, end time.Time, discount *float64) {
	var bestConfidence float64
	for i, s := range evidence {
		ss, se := s.EffectiveDates()
		if i == 0 || ss.Before(start) {
			start = ss
		}
		if i == 0 || se.After(end) {
			end = se
		}
		if s.DiscountValue != nil && (discount == nil || s.Confidence > bestConfidence) {
			v := *s.DiscountValue
			discount = &v
			bestConfidence = s.Confidence
		}
	}
	return start, end, discount
}

// classify applies the tolerance rules. An unknown discount delta never
// demotes a timing hit.
func classify(timingDelta int, discountDelta *float64, cfg config.VerifyConfig) model.Result {
	timingOK := abs(timingDelta) <= cfg.TimingToleranceDays
	discountOK := discountDelta == nil || math.Abs(*discountDelta) <= cfg.DiscountTolerancePercent
	if timingOK && discountOK {
		return model.ResultHit
	}
	return model.ResultPartial
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
