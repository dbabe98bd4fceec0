package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salewatch-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock), mock
}

func TestPostgresStore_GetBrand_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, slug, active, excluded_categories, created_at, updated_at`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBrand(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBrands_ActiveFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM brands WHERE active = TRUE ORDER BY slug`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "slug", "active", "excluded_categories", "created_at", "updated_at",
		}).AddRow("b1", "Acme", "acme", true, []byte(`["gift cards"]`), now, now))

	brands, err := s.ListBrands(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "acme", brands[0].Slug)
	assert.Equal(t, []string{"gift cards"}, brands[0].ExcludedCategories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSaleWindows_LinksMembers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	w := model.SaleWindow{
		ID:              "w1",
		BrandID:         "b1",
		Name:            "Acme November 25% Off",
		DiscountSummary: "25% off sitewide",
		StartDate:       time.Date(2024, time.November, 25, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, time.November, 29, 0, 0, 0, 0, time.UTC),
		Sitewide:        true,
		Year:            2024,
		MemberSaleIDs:   []string{"s1", "s2"},
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sale_windows`).
		WithArgs(w.ID, w.BrandID, w.Name, w.DiscountSummary, w.StartDate, w.EndDate,
			w.HolidayAnchor, w.Sitewide, pgxmock.AnyArg(), w.Year, pgxmock.AnyArg(), w.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE detected_sales SET window_id`).
		WithArgs(w.ID, w.MemberSaleIDs).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err := s.CreateSaleWindows(context.Background(), []model.SaleWindow{w})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSaleWindows_EmptyIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.CreateSaleWindows(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreatePredictions_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	p := model.Prediction{
		ID:             "p1",
		BrandID:        "b1",
		SourceWindowID: "w1",
		TargetYear:     2025,
		PredictedStart: time.Date(2025, time.November, 27, 0, 0, 0, 0, time.UTC),
		PredictedEnd:   time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
		Confidence:     0.75,
		CreatedAt:      time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO predictions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.CreatePredictions(context.Background(), []model.Prediction{p})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAutoOutcome_GuardsOverride(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	verifiedAt := time.Now().UTC()
	delta := 2
	o := model.PredictionOutcome{
		ID:              "o1",
		PredictionID:    "p1",
		AutoResult:      model.ResultHit,
		AutoVerifiedAt:  &verifiedAt,
		MatchedSaleIDs:  []string{"s1"},
		TimingDeltaDays: &delta,
		CreatedAt:       verifiedAt,
	}

	// The statement must carry the manual_override guard.
	mock.ExpectExec(`ON CONFLICT \(prediction_id\) DO UPDATE SET(.|\n)*manual_override = FALSE`).
		WithArgs("o1", "p1", "hit", &verifiedAt, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), &delta,
			pgxmock.AnyArg(), verifiedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertAutoOutcome(context.Background(), o)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDuePredictions_FiltersVerified(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	asOf := time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(`LEFT JOIN prediction_outcomes(.|\n)*manual_override = FALSE`).
		WithArgs("b1", asOf).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "brand_id", "source_window_id", "target_year", "predicted_start",
			"predicted_end", "discount_summary", "holiday_anchor", "reference_url",
			"confidence", "calendar_event_id", "notified_at", "created_at",
		}).AddRow("p1", "b1", "w1", 2025,
			time.Date(2025, time.November, 27, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
			"25% off sitewide", "black_friday", "", 0.75, "", (*time.Time)(nil), now))

	due, err := s.ListDuePredictions(context.Background(), "b1", asOf, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "p1", due[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasPendingSuggestion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("b1", "timing_drift", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	pending, err := s.HasPendingSuggestion(context.Background(), "b1", model.SuggestionTimingDrift)
	require.NoError(t, err)
	assert.True(t, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveSuggestion_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE adjustment_suggestions SET status`).
		WithArgs("approved", pgxmock.AnyArg(), "sg1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := s.ResolveSuggestion(context.Background(), "sg1", model.SuggestionApproved)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithBrandLock_AcquiresAdvisoryLock(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("b1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	var ran bool
	err := s.WithBrandLock(context.Background(), "b1", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}
