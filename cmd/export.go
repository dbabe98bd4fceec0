package main

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/model"
)

var (
	exportKind   string
	exportFormat string
	exportOut    string
	exportBrand  string
	exportYear   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export predictions or accuracy stats to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var rows [][]string
		switch exportKind {
		case "predictions":
			year := exportYear
			if year == 0 {
				year = time.Now().UTC().Year() + 1
			}
			brands, err := resolveBrands(ctx, st, exportBrand)
			if err != nil {
				return err
			}
			var preds []model.Prediction
			for _, b := range brands {
				p, err := st.ListPredictionsForYear(ctx, b.ID, year)
				if err != nil {
					return eris.Wrapf(err, "list predictions for %s", b.Slug)
				}
				preds = append(preds, p...)
			}
			rows = predictionRows(preds)
		case "accuracy":
			stats, err := st.ListBrandStats(ctx)
			if err != nil {
				return eris.Wrap(err, "list brand stats")
			}
			rows = statsRows(stats)
		default:
			return eris.Errorf("unsupported export kind: %s", exportKind)
		}

		switch exportFormat {
		case "csv":
			err = writeCSV(exportOut, rows)
		case "xlsx":
			err = writeXLSX(exportOut, exportKind, rows)
		default:
			return eris.Errorf("unsupported export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("kind", exportKind),
			zap.String("format", exportFormat),
			zap.String("out", exportOut),
			zap.Int("rows", len(rows)-1),
		)
		return nil
	},
}

func predictionRows(preds []model.Prediction) [][]string {
	rows := [][]string{{
		"id", "brand_id", "target_year", "predicted_start", "predicted_end",
		"discount_summary", "holiday_anchor", "confidence", "reference_url",
	}}
	for _, p := range preds {
		rows = append(rows, []string{
			p.ID,
			p.BrandID,
			strconv.Itoa(p.TargetYear),
			p.PredictedStart.Format("2006-01-02"),
			p.PredictedEnd.Format("2006-01-02"),
			p.DiscountSummary,
			p.HolidayAnchor,
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			p.ReferenceURL,
		})
	}
	return rows
}

func statsRows(stats []model.BrandAccuracyStats) [][]string {
	rows := [][]string{{
		"brand_id", "total_predictions", "correct", "partial", "missed",
		"hit_rate", "avg_timing_delta_days", "timing_delta_std",
		"avg_discount_delta", "reliability_score", "tier", "last_calculated_at",
	}}
	for _, s := range stats {
		rows = append(rows, []string{
			s.BrandID,
			strconv.Itoa(s.TotalPredictions),
			strconv.Itoa(s.CorrectPredictions),
			strconv.Itoa(s.PartialPredictions),
			strconv.Itoa(s.MissedPredictions),
			strconv.FormatFloat(s.HitRate, 'f', 4, 64),
			formatOptFloat(s.AvgTimingDeltaDays),
			formatOptFloat(s.TimingDeltaStd),
			formatOptFloat(s.AvgDiscountDelta),
			strconv.Itoa(s.ReliabilityScore),
			string(s.ReliabilityTier),
			s.LastCalculatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func writeXLSX(path, sheetName string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportKind, "kind", "predictions", "what to export: predictions or accuracy")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (required)")
	exportCmd.Flags().StringVar(&exportBrand, "brand", "", "brand ID or slug (predictions only, default all active)")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "target year (predictions only, default next calendar year)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
