package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
	"github.com/sells-group/salewatch-cli/internal/verify"
)

var (
	verifyBrand string
	verifyAsOf  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Classify due predictions against observed sales",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		brands, err := resolveBrands(ctx, st, verifyBrand)
		if err != nil {
			return err
		}

		asOf := time.Now().UTC()
		if verifyAsOf != "" {
			asOf, err = time.Parse("2006-01-02", verifyAsOf)
			if err != nil {
				return eris.Wrapf(err, "parse --as-of %q", verifyAsOf)
			}
		}

		svc := verify.NewService(st, cfg.Verify)
		var total verify.Summary
		for _, b := range brands {
			sum, err := verifyOneBrand(ctx, st, svc, b, asOf)
			if err != nil {
				return eris.Wrapf(err, "verify brand %s", b.Slug)
			}
			total.Total += sum.Total
			total.Hits += sum.Hits
			total.Partials += sum.Partials
			total.Misses += sum.Misses
			zap.L().Info("brand verified",
				zap.String("brand", b.Slug),
				zap.Int("verified", sum.Total),
				zap.Int("hits", sum.Hits),
				zap.Int("partials", sum.Partials),
				zap.Int("misses", sum.Misses),
			)
		}

		zap.L().Info("verify complete",
			zap.Int("brands", len(brands)),
			zap.Int("verified", total.Total),
			zap.Int("hits", total.Hits),
			zap.Int("partials", total.Partials),
			zap.Int("misses", total.Misses),
		)
		return nil
	},
}

// verifyOneBrand runs one brand's verification pass under its exclusive lock.
func verifyOneBrand(ctx context.Context, st store.Store, svc *verify.Service, b model.Brand, asOf time.Time) (verify.Summary, error) {
	var sum verify.Summary
	err := st.WithBrandLock(ctx, b.ID, func(ctx context.Context) error {
		var err error
		sum, err = svc.Run(ctx, b, asOf)
		return err
	})
	return sum, err
}

func init() {
	verifyCmd.Flags().StringVar(&verifyBrand, "brand", "", "brand ID or slug (default all active brands)")
	verifyCmd.Flags().StringVar(&verifyAsOf, "as-of", "", "verification cutoff date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(verifyCmd)
}
