package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/dedup"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

var dedupBrand string

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Cluster approved sales into canonical sale windows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		brands, err := resolveBrands(ctx, st, dedupBrand)
		if err != nil {
			return err
		}

		svc := dedup.NewService(st, cfg.Dedup)
		total := 0
		for _, b := range brands {
			windows, err := dedupOneBrand(ctx, st, svc, b)
			if err != nil {
				return eris.Wrapf(err, "dedup brand %s", b.Slug)
			}
			total += len(windows)
			zap.L().Info("brand deduplicated",
				zap.String("brand", b.Slug),
				zap.Int("windows", len(windows)),
			)
		}

		zap.L().Info("dedup complete",
			zap.Int("brands", len(brands)),
			zap.Int("windows", total),
		)
		return nil
	},
}

// dedupOneBrand runs one brand's clustering pass under its exclusive lock, so
// a standalone invocation cannot interleave with a concurrent run for the
// same brand.
func dedupOneBrand(ctx context.Context, st store.Store, svc *dedup.Service, b model.Brand) ([]model.SaleWindow, error) {
	var windows []model.SaleWindow
	err := st.WithBrandLock(ctx, b.ID, func(ctx context.Context) error {
		var err error
		windows, err = svc.Run(ctx, b)
		return err
	})
	return windows, err
}

func init() {
	dedupCmd.Flags().StringVar(&dedupBrand, "brand", "", "brand ID or slug (default all active brands)")
	rootCmd.AddCommand(dedupCmd)
}
