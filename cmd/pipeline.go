package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/pipeline"
)

var (
	pipelineBrand       string
	pipelineYear        int
	pipelineConcurrency int
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run dedup, predict, verify, and accuracy for tracked brands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if pipelineConcurrency > 0 {
			cfg.Pipeline.MaxConcurrentBrands = pipelineConcurrency
		}

		year := pipelineYear
		if year == 0 {
			year = time.Now().UTC().Year() + 1
		}
		asOf := time.Now().UTC()

		runner := pipeline.NewRunner(st, cfg)

		var summary *pipeline.BatchSummary
		if pipelineBrand != "" {
			b, err := st.GetBrand(ctx, pipelineBrand)
			if err != nil {
				return eris.Wrapf(err, "resolve brand %s", pipelineBrand)
			}
			result, err := runner.RunBrand(ctx, *b, year, asOf)
			if err != nil {
				return eris.Wrapf(err, "pipeline brand %s", b.Slug)
			}
			summary = &pipeline.BatchSummary{Succeeded: 1, Results: []pipeline.BrandResult{result}}
		} else {
			summary, err = runner.RunAll(ctx, year, asOf)
			if err != nil {
				return eris.Wrap(err, "pipeline batch")
			}
		}

		zap.L().Info("pipeline complete",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineBrand, "brand", "", "brand ID or slug (default all active brands)")
	pipelineCmd.Flags().IntVar(&pipelineYear, "year", 0, "target prediction year (default next calendar year)")
	pipelineCmd.Flags().IntVar(&pipelineConcurrency, "concurrency", 0, "max brands processed in parallel (default from config)")
	rootCmd.AddCommand(pipelineCmd)
}
