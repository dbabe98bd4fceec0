package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/model"
)

var (
	importCSVPath string
	importBrand   string
)

// bulkImporter is satisfied by the postgres store, which can take the COPY
// fast path for large files.
type bulkImporter interface {
	BulkImportSales(ctx context.Context, sales []model.DetectedSale) (int64, error)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import detected sales from CSV",
	Long: `Import detected sales from a CSV file with header:
discount_type,discount_value,discount_max,sitewide,categories,sale_start,sale_end,confidence,review_status,source_date,source_url
Categories are separated by ';'. Dates are YYYY-MM-DD. Empty cells mean unknown.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		brand, err := st.GetBrand(ctx, importBrand)
		if err != nil {
			return eris.Wrapf(err, "resolve brand %s", importBrand)
		}

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close()

		sales, err := parseSalesCSV(f, brand.ID)
		if err != nil {
			return err
		}

		if bulk, ok := st.(bulkImporter); ok {
			n, err := bulk.BulkImportSales(ctx, sales)
			if err != nil {
				return eris.Wrap(err, "bulk import sales")
			}
			zap.L().Info("import complete",
				zap.String("brand", brand.Slug),
				zap.Int64("imported", n),
				zap.String("csv", importCSVPath),
			)
			return nil
		}

		if err := st.InsertDetectedSales(ctx, sales); err != nil {
			return eris.Wrap(err, "insert sales")
		}
		zap.L().Info("import complete",
			zap.String("brand", brand.Slug),
			zap.Int("imported", len(sales)),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

func parseSalesCSV(r io.Reader, brandID string) ([]model.DetectedSale, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"discount_type", "source_date"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var sales []model.DetectedSale
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read csv line %d", line+1)
		}
		line++

		sourceDate, err := time.Parse("2006-01-02", field(row, "source_date"))
		if err != nil {
			return nil, eris.Wrapf(err, "line %d: parse source_date", line)
		}

		sale := model.DetectedSale{
			BrandID:      brandID,
			DiscountType: model.DiscountType(field(row, "discount_type")),
			Sitewide:     field(row, "sitewide") == "true",
			ReviewStatus: model.ReviewPending,
			SourceDate:   sourceDate,
			SourceURL:    field(row, "source_url"),
		}

		if v := field(row, "discount_value"); v != "" {
			val, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: parse discount_value", line)
			}
			sale.DiscountValue = &val
		}
		if v := field(row, "discount_max"); v != "" {
			val, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: parse discount_max", line)
			}
			sale.DiscountMax = &val
		}
		if v := field(row, "categories"); v != "" {
			sale.Categories = strings.Split(v, ";")
		}
		if v := field(row, "sale_start"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: parse sale_start", line)
			}
			sale.SaleStart = &t
		}
		if v := field(row, "sale_end"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: parse sale_end", line)
			}
			sale.SaleEnd = &t
		}
		if v := field(row, "confidence"); v != "" {
			val, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: parse confidence", line)
			}
			sale.Confidence = val
		}
		if v := field(row, "review_status"); v != "" {
			sale.ReviewStatus = model.ReviewStatus(v)
		}

		sales = append(sales, sale)
	}
	return sales, nil
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importBrand, "brand", "", "brand ID or slug (required)")
	_ = importCmd.MarkFlagRequired("csv")
	_ = importCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(importCmd)
}
