package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var upcomingDays int

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List predictions whose window starts within the next N days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		preds, err := st.ListUpcomingPredictions(ctx, time.Now().UTC(), upcomingDays)
		if err != nil {
			return eris.Wrap(err, "list upcoming predictions")
		}

		zap.L().Info("upcoming predictions",
			zap.Int("days", upcomingDays),
			zap.Int("count", len(preds)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	},
}

func init() {
	upcomingCmd.Flags().IntVar(&upcomingDays, "days", 30, "look-ahead horizon in days")
	rootCmd.AddCommand(upcomingCmd)
}
