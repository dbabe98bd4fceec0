package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/accuracy"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

var (
	accuracyBrand   string
	accuracyOverall bool
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Recompute per-brand accuracy stats and raise drift suggestions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := accuracy.NewService(st, cfg.Accuracy)

		if accuracyOverall {
			overall, err := svc.Overall(ctx)
			if err != nil {
				return eris.Wrap(err, "overall stats")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(overall)
		}

		brands, err := resolveBrands(ctx, st, accuracyBrand)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		updated := 0
		for _, b := range brands {
			stats, err := accuracyOneBrand(ctx, st, svc, b, now)
			if err != nil {
				return eris.Wrapf(err, "accuracy brand %s", b.Slug)
			}
			if stats == nil {
				zap.L().Info("brand skipped, too few outcomes", zap.String("brand", b.Slug))
				continue
			}
			updated++
			zap.L().Info("brand stats updated",
				zap.String("brand", b.Slug),
				zap.Float64("hit_rate", stats.HitRate),
				zap.Int("reliability_score", stats.ReliabilityScore),
				zap.String("tier", string(stats.ReliabilityTier)),
			)
		}

		zap.L().Info("accuracy complete",
			zap.Int("brands", len(brands)),
			zap.Int("updated", updated),
		)
		return nil
	},
}

// accuracyOneBrand recomputes one brand's stats under its exclusive lock.
func accuracyOneBrand(ctx context.Context, st store.Store, svc *accuracy.Service, b model.Brand, now time.Time) (*model.BrandAccuracyStats, error) {
	var stats *model.BrandAccuracyStats
	err := st.WithBrandLock(ctx, b.ID, func(ctx context.Context) error {
		var err error
		stats, err = svc.Run(ctx, b, now)
		return err
	})
	return stats, err
}

func init() {
	accuracyCmd.Flags().StringVar(&accuracyBrand, "brand", "", "brand ID or slug (default all active brands)")
	accuracyCmd.Flags().BoolVar(&accuracyOverall, "overall", false, "print the cross-brand rollup instead of recomputing")
	rootCmd.AddCommand(accuracyCmd)
}
