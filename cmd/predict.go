package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/predict"
	"github.com/sells-group/salewatch-cli/internal/store"
)

var (
	predictBrand string
	predictYear  int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate predictions by projecting last year's windows forward",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		brands, err := resolveBrands(ctx, st, predictBrand)
		if err != nil {
			return err
		}

		year := predictYear
		if year == 0 {
			year = time.Now().UTC().Year() + 1
		}

		svc := predict.NewService(st, cfg.Predict)
		total := 0
		for _, b := range brands {
			preds, err := predictOneBrand(ctx, st, svc, b, year)
			if err != nil {
				return eris.Wrapf(err, "predict brand %s", b.Slug)
			}
			total += len(preds)
			zap.L().Info("brand predicted",
				zap.String("brand", b.Slug),
				zap.Int("year", year),
				zap.Int("predictions", len(preds)),
			)
		}

		zap.L().Info("predict complete",
			zap.Int("brands", len(brands)),
			zap.Int("predictions", total),
		)
		return nil
	},
}

// predictOneBrand runs one brand's generation pass under its exclusive lock.
func predictOneBrand(ctx context.Context, st store.Store, svc *predict.Service, b model.Brand, year int) ([]model.Prediction, error) {
	var preds []model.Prediction
	err := st.WithBrandLock(ctx, b.ID, func(ctx context.Context) error {
		var err error
		preds, err = svc.Run(ctx, b, year)
		return err
	})
	return preds, err
}

func init() {
	predictCmd.Flags().StringVar(&predictBrand, "brand", "", "brand ID or slug (default all active brands)")
	predictCmd.Flags().IntVar(&predictYear, "year", 0, "target year (default next calendar year)")
	rootCmd.AddCommand(predictCmd)
}
