package predict

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/config"
	"github.com/sells-group/salewatch-cli/internal/holiday"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// Generator builds prediction candidates for one target year.
type Generator struct {
	cfg        config.PredictConfig
	cal        *holiday.Calendar
	targetYear int
}

// NewGenerator creates a Generator. The calendar is owned by the caller so
// concurrent brand runs never share memo state.
func NewGenerator(cfg config.PredictConfig, cal *holiday.Calendar, targetYear int) *Generator {
	return &Generator{cfg: cfg, cal: cal, targetYear: targetYear}
}

// resolveAnchor returns the window's stored anchor when valid, otherwise
// attempts detection from the start date.
func (g *Generator) resolveAnchor(w model.SaleWindow) string {
	if w.HolidayAnchor != "" && holiday.Valid(holiday.Holiday(w.HolidayAnchor)) {
		return w.HolidayAnchor
	}
	if a, ok := g.cal.DetectAnchorWithin(w.StartDate, g.cfg.AnchorMaxDays); ok {
		return string(a)
	}
	return ""
}

// Generate projects each seed window (year targetYear-1) into the target
// year. Seeds already predicted for the target year are skipped, as are
// candidates below the confidence threshold; a threshold-exact candidate is
// accepted. referenceURL maps window ID to a citation URL and may be nil.
func (g *Generator) Generate(
	seeds []model.SaleWindow,
	history []model.SaleWindow,
	predicted map[string]bool,
	referenceURL map[string]string,
) ([]model.Prediction, error) {
	var predictions []model.Prediction

	for _, w := range seeds {
		if predicted[w.ID] {
			continue
		}

		anchor := g.resolveAnchor(w)

		start, err := holiday.AdjustAcrossYears(w.StartDate, w.Year, g.targetYear, holiday.Holiday(anchor))
		if err != nil {
			return nil, eris.Wrapf(err, "predict: project window %s", w.ID)
		}
		end, err := holiday.AdjustAcrossYears(w.EndDate, w.Year, g.targetYear, holiday.Holiday(anchor))
		if err != nil {
			return nil, eris.Wrapf(err, "predict: project window %s", w.ID)
		}

		confidence := Confidence(w, anchor, history, g.cfg)
		if confidence < g.cfg.MinConfidence {
			zap.L().Debug("predict: candidate below threshold",
				zap.String("window", w.ID),
				zap.Float64("confidence", confidence),
			)
			continue
		}

		summary := w.DiscountSummary
		if summary == "" {
			summary = w.Name
		}

		predictions = append(predictions, model.Prediction{
			ID:              uuid.New().String(),
			BrandID:         w.BrandID,
			SourceWindowID:  w.ID,
			TargetYear:      g.targetYear,
			PredictedStart:  start,
			PredictedEnd:    end,
			DiscountSummary: summary,
			HolidayAnchor:   anchor,
			ReferenceURL:    referenceURL[w.ID],
			Confidence:      confidence,
			CreatedAt:       time.Now().UTC(),
		})
	}

	return predictions, nil
}
