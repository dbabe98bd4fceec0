package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/salewatch-cli/internal/model"
)

func samplePredictions() []model.Prediction {
	return []model.Prediction{
		{
			ID:              "p-1",
			BrandID:         "b-1",
			TargetYear:      2025,
			PredictedStart:  time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC),
			PredictedEnd:    time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			DiscountSummary: "30% off sitewide",
			HolidayAnchor:   "black_friday",
			Confidence:      0.75,
			ReferenceURL:    "https://example.com/bf",
		},
	}
}

func TestPredictionRows(t *testing.T) {
	rows := predictionRows(samplePredictions())

	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{
		"p-1", "b-1", "2025", "2025-11-28", "2025-12-01",
		"30% off sitewide", "black_friday", "0.75", "https://example.com/bf",
	}, rows[1])
}

func TestStatsRows_OptionalFields(t *testing.T) {
	delta := 2.5
	stats := []model.BrandAccuracyStats{
		{
			BrandID:            "b-1",
			TotalPredictions:   12,
			CorrectPredictions: 9,
			PartialPredictions: 2,
			MissedPredictions:  1,
			HitRate:            0.8333,
			AvgTimingDeltaDays: &delta,
			ReliabilityScore:   84,
			ReliabilityTier:    model.TierExcellent,
			LastCalculatedAt:   time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
		},
	}

	rows := statsRows(stats)
	require.Len(t, rows, 2)
	assert.Equal(t, "2.50", rows[1][6])
	// Unset optional stats export as empty cells.
	assert.Equal(t, "", rows[1][7])
	assert.Equal(t, "", rows[1][8])
	assert.Equal(t, "excellent", rows[1][10])
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rows := predictionRows(samplePredictions())

	require.NoError(t, writeCSV(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	rows := predictionRows(samplePredictions())

	require.NoError(t, writeXLSX(path, "predictions", rows))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, "predictions", f.Sheets[0].Name)

	require.Len(t, f.Sheets[0].Rows, 2)
	cells := f.Sheets[0].Rows[1].Cells
	require.NotEmpty(t, cells)
	assert.Equal(t, "p-1", cells[0].String())
}
