package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/salewatch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Brand locks are
// in-process keyed mutexes; a single writer process is assumed.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb, locks: make(map[string]*sync.Mutex)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS brands (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	slug                TEXT NOT NULL UNIQUE,
	active              INTEGER NOT NULL DEFAULT 1,
	excluded_categories TEXT,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_windows (
	id               TEXT PRIMARY KEY,
	brand_id         TEXT NOT NULL REFERENCES brands(id),
	name             TEXT NOT NULL,
	discount_summary TEXT NOT NULL,
	start_date       DATETIME NOT NULL,
	end_date         DATETIME NOT NULL,
	holiday_anchor   TEXT NOT NULL DEFAULT '',
	sitewide         INTEGER NOT NULL DEFAULT 0,
	categories       TEXT,
	year             INTEGER NOT NULL,
	member_sale_ids  TEXT NOT NULL,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS detected_sales (
	id             TEXT PRIMARY KEY,
	brand_id       TEXT NOT NULL REFERENCES brands(id),
	discount_type  TEXT NOT NULL,
	discount_value REAL,
	discount_max   REAL,
	sitewide       INTEGER NOT NULL DEFAULT 0,
	categories     TEXT,
	sale_start     DATETIME,
	sale_end       DATETIME,
	confidence     REAL NOT NULL DEFAULT 0,
	review_status  TEXT NOT NULL DEFAULT 'pending',
	source_date    DATETIME NOT NULL,
	source_url     TEXT NOT NULL DEFAULT '',
	window_id      TEXT REFERENCES sale_windows(id),
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	id                TEXT PRIMARY KEY,
	brand_id          TEXT NOT NULL REFERENCES brands(id),
	source_window_id  TEXT NOT NULL REFERENCES sale_windows(id),
	target_year       INTEGER NOT NULL,
	predicted_start   DATETIME NOT NULL,
	predicted_end     DATETIME NOT NULL,
	discount_summary  TEXT NOT NULL,
	holiday_anchor    TEXT NOT NULL DEFAULT '',
	reference_url     TEXT NOT NULL DEFAULT '',
	confidence        REAL NOT NULL,
	calendar_event_id TEXT NOT NULL DEFAULT '',
	notified_at       DATETIME,
	created_at        DATETIME NOT NULL,
	UNIQUE (source_window_id, target_year)
);

CREATE TABLE IF NOT EXISTS prediction_outcomes (
	id                TEXT PRIMARY KEY,
	prediction_id     TEXT NOT NULL UNIQUE REFERENCES predictions(id),
	auto_result       TEXT NOT NULL DEFAULT '',
	auto_verified_at  DATETIME,
	matched_sale_ids  TEXT,
	manual_override   INTEGER NOT NULL DEFAULT 0,
	manual_result     TEXT NOT NULL DEFAULT '',
	override_reason   TEXT NOT NULL DEFAULT '',
	overridden_at     DATETIME,
	actual_start      DATETIME,
	actual_end        DATETIME,
	actual_discount   REAL,
	timing_delta_days INTEGER,
	discount_delta    REAL,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS brand_accuracy_stats (
	id                    TEXT PRIMARY KEY,
	brand_id              TEXT NOT NULL UNIQUE REFERENCES brands(id),
	total_predictions     INTEGER NOT NULL,
	correct_predictions   INTEGER NOT NULL,
	partial_predictions   INTEGER NOT NULL,
	missed_predictions    INTEGER NOT NULL,
	hit_rate              REAL NOT NULL,
	avg_timing_delta_days REAL,
	timing_delta_std      REAL,
	avg_discount_delta    REAL,
	reliability_score     INTEGER NOT NULL,
	reliability_tier      TEXT NOT NULL,
	last_calculated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS adjustment_suggestions (
	id                 TEXT PRIMARY KEY,
	brand_id           TEXT NOT NULL REFERENCES brands(id),
	type               TEXT NOT NULL,
	description        TEXT NOT NULL,
	recommended_action TEXT NOT NULL,
	supporting_data    TEXT,
	status             TEXT NOT NULL DEFAULT 'pending',
	resolved_at        DATETIME,
	created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_brand_status ON detected_sales(brand_id, review_status);
CREATE INDEX IF NOT EXISTS idx_sales_window ON detected_sales(window_id);
CREATE INDEX IF NOT EXISTS idx_windows_brand_year ON sale_windows(brand_id, year);
CREATE INDEX IF NOT EXISTS idx_predictions_brand_year ON predictions(brand_id, target_year);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_start ON predictions(predicted_start);
CREATE INDEX IF NOT EXISTS idx_suggestions_status ON adjustment_suggestions(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Brands

func (s *SQLiteStore) CreateBrand(ctx context.Context, b model.Brand) error {
	excludedJSON, err := json.Marshal(b.ExcludedCategories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal excluded categories")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO brands (id, name, slug, active, excluded_categories, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Slug, b.Active, string(excludedJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert brand %s", b.Slug)
}

func (s *SQLiteStore) GetBrand(ctx context.Context, idOrSlug string) (*model.Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, active, excluded_categories, created_at, updated_at
		 FROM brands WHERE id = ? OR slug = ?`,
		idOrSlug, idOrSlug,
	)
	b, err := scanBrandRow(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "brand %s", idOrSlug)
		}
		return nil, eris.Wrapf(err, "sqlite: get brand %s", idOrSlug)
	}
	return b, nil
}

func (s *SQLiteStore) ListBrands(ctx context.Context, activeOnly bool) ([]model.Brand, error) {
	query := `SELECT id, name, slug, active, excluded_categories, created_at, updated_at FROM brands`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list brands")
	}
	defer rows.Close()

	var brands []model.Brand
	for rows.Next() {
		b, err := scanBrandRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan brand")
		}
		brands = append(brands, *b)
	}
	return brands, eris.Wrap(rows.Err(), "sqlite: list brands iterate")
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrandRow(row rowScanner) (*model.Brand, error) {
	var b model.Brand
	var excludedJSON sql.NullString
	if err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Active, &excludedJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if excludedJSON.Valid && excludedJSON.String != "" {
		if err := json.Unmarshal([]byte(excludedJSON.String), &b.ExcludedCategories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal excluded categories")
		}
	}
	return &b, nil
}

// Detected sales

func (s *SQLiteStore) InsertDetectedSales(ctx context.Context, sales []model.DetectedSale) error {
	if len(sales) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sale := range sales {
			categoriesJSON, err := json.Marshal(sale.Categories)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal sale categories")
			}
			if sale.ID == "" {
				sale.ID = uuid.New().String()
			}
			if sale.CreatedAt.IsZero() {
				sale.CreatedAt = time.Now().UTC()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO detected_sales
				 (id, brand_id, discount_type, discount_value, discount_max, sitewide,
				  categories, sale_start, sale_end, confidence, review_status, source_date,
				  source_url, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sale.ID, sale.BrandID, string(sale.DiscountType), sale.DiscountValue,
				sale.DiscountMax, sale.Sitewide, string(categoriesJSON), sale.SaleStart,
				sale.SaleEnd, sale.Confidence, string(sale.ReviewStatus), sale.SourceDate,
				sale.SourceURL, sale.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert sale %s", sale.ID)
			}
		}
		return nil
	})
}

const sqliteSaleColumns = `id, brand_id, discount_type, discount_value, discount_max, sitewide,
	categories, sale_start, sale_end, confidence, review_status, source_date, source_url, created_at`

func (s *SQLiteStore) ListUnprocessedSales(ctx context.Context, brandID string) ([]model.DetectedSale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSaleColumns+` FROM detected_sales
		 WHERE brand_id = ? AND review_status = ? AND window_id IS NULL
		 ORDER BY source_date, id`,
		brandID, string(model.ReviewApproved),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed sales")
	}
	return collectSaleRows(rows)
}

func (s *SQLiteStore) ListApprovedSalesInRange(ctx context.Context, brandID string, from, to time.Time) ([]model.DetectedSale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSaleColumns+` FROM detected_sales
		 WHERE brand_id = ? AND review_status = ?
		   AND COALESCE(sale_start, source_date) >= ?
		   AND COALESCE(sale_start, source_date) <= ?
		 ORDER BY source_date, id`,
		brandID, string(model.ReviewApproved), from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sales in range")
	}
	return collectSaleRows(rows)
}

func (s *SQLiteStore) ListSalesByIDs(ctx context.Context, ids []string) ([]model.DetectedSale, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSaleColumns+` FROM detected_sales
		 WHERE id IN (`+placeholders+`) ORDER BY source_date, id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sales by ids")
	}
	return collectSaleRows(rows)
}

func collectSaleRows(rows *sql.Rows) ([]model.DetectedSale, error) {
	defer rows.Close()
	var sales []model.DetectedSale
	for rows.Next() {
		var sale model.DetectedSale
		var categoriesJSON sql.NullString
		var discountType, reviewStatus string
		if err := rows.Scan(&sale.ID, &sale.BrandID, &discountType, &sale.DiscountValue,
			&sale.DiscountMax, &sale.Sitewide, &categoriesJSON, &sale.SaleStart, &sale.SaleEnd,
			&sale.Confidence, &reviewStatus, &sale.SourceDate, &sale.SourceURL,
			&sale.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sale")
		}
		sale.DiscountType = model.DiscountType(discountType)
		sale.ReviewStatus = model.ReviewStatus(reviewStatus)
		if categoriesJSON.Valid && categoriesJSON.String != "" {
			if err := json.Unmarshal([]byte(categoriesJSON.String), &sale.Categories); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal sale categories")
			}
		}
		sales = append(sales, sale)
	}
	return sales, eris.Wrap(rows.Err(), "sqlite: iterate sales")
}

// Sale windows

const sqliteWindowColumns = `id, brand_id, name, discount_summary, start_date, end_date,
	holiday_anchor, sitewide, categories, year, member_sale_ids, created_at`

func (s *SQLiteStore) CreateSaleWindows(ctx context.Context, windows []model.SaleWindow) error {
	if len(windows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, w := range windows {
			categoriesJSON, err := json.Marshal(w.Categories)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal window categories")
			}
			membersJSON, err := json.Marshal(w.MemberSaleIDs)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal member sale ids")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO sale_windows (`+sqliteWindowColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				w.ID, w.BrandID, w.Name, w.DiscountSummary, w.StartDate, w.EndDate,
				w.HolidayAnchor, w.Sitewide, string(categoriesJSON), w.Year,
				string(membersJSON), w.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert window %s", w.ID)
			}
			for _, saleID := range w.MemberSaleIDs {
				if _, err := tx.ExecContext(ctx,
					`UPDATE detected_sales SET window_id = ? WHERE id = ?`,
					w.ID, saleID,
				); err != nil {
					return eris.Wrapf(err, "sqlite: link sale %s to window %s", saleID, w.ID)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListWindows(ctx context.Context, brandID string) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+sqliteWindowColumns+` FROM sale_windows WHERE brand_id = ? ORDER BY start_date, id`,
		brandID,
	)
}

func (s *SQLiteStore) ListWindowsByYear(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+sqliteWindowColumns+` FROM sale_windows
		 WHERE brand_id = ? AND year = ? ORDER BY start_date, id`,
		brandID, year,
	)
}

func (s *SQLiteStore) ListWindowsBefore(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+sqliteWindowColumns+` FROM sale_windows
		 WHERE brand_id = ? AND year < ? ORDER BY start_date, id`,
		brandID, year,
	)
}

func (s *SQLiteStore) queryWindows(ctx context.Context, query string, args ...any) ([]model.SaleWindow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list windows")
	}
	defer rows.Close()

	var windows []model.SaleWindow
	for rows.Next() {
		var w model.SaleWindow
		var categoriesJSON sql.NullString
		var membersJSON string
		if err := rows.Scan(&w.ID, &w.BrandID, &w.Name, &w.DiscountSummary, &w.StartDate,
			&w.EndDate, &w.HolidayAnchor, &w.Sitewide, &categoriesJSON, &w.Year,
			&membersJSON, &w.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan window")
		}
		if categoriesJSON.Valid && categoriesJSON.String != "" {
			if err := json.Unmarshal([]byte(categoriesJSON.String), &w.Categories); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal window categories")
			}
		}
		if err := json.Unmarshal([]byte(membersJSON), &w.MemberSaleIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal member sale ids")
		}
		windows = append(windows, w)
	}
	return windows, eris.Wrap(rows.Err(), "sqlite: iterate windows")
}

// Predictions

const sqlitePredictionColumns = `id, brand_id, source_window_id, target_year, predicted_start,
	predicted_end, discount_summary, holiday_anchor, reference_url, confidence,
	calendar_event_id, notified_at, created_at`

func (s *SQLiteStore) CreatePredictions(ctx context.Context, preds []model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range preds {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO predictions (`+sqlitePredictionColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.BrandID, p.SourceWindowID, p.TargetYear, p.PredictedStart,
				p.PredictedEnd, p.DiscountSummary, p.HolidayAnchor, p.ReferenceURL,
				p.Confidence, p.CalendarEventID, p.NotifiedAt, p.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert prediction %s", p.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePredictionColumns+` FROM predictions WHERE id = ?`, id,
	)
	p, err := scanPredictionRow(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "prediction %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get prediction %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPredictionsForYear(ctx context.Context, brandID string, year int) ([]model.Prediction, error) {
	return s.queryPredictions(ctx,
		`SELECT `+sqlitePredictionColumns+` FROM predictions
		 WHERE brand_id = ? AND target_year = ? ORDER BY predicted_start, id`,
		brandID, year,
	)
}

func (s *SQLiteStore) ListDuePredictions(ctx context.Context, brandID string, asOf time.Time, limit int) ([]model.Prediction, error) {
	query := `SELECT p.id, p.brand_id, p.source_window_id, p.target_year, p.predicted_start,
		p.predicted_end, p.discount_summary, p.holiday_anchor, p.reference_url, p.confidence,
		p.calendar_event_id, p.notified_at, p.created_at
	 FROM predictions p
	 LEFT JOIN prediction_outcomes o ON o.prediction_id = p.id
	 WHERE p.brand_id = ? AND p.predicted_end < ?
	   AND (o.prediction_id IS NULL OR (o.auto_result = '' AND o.manual_override = 0))
	 ORDER BY p.predicted_end, p.id`
	args := []any{brandID, asOf}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryPredictions(ctx, query, args...)
}

func (s *SQLiteStore) ListUpcomingPredictions(ctx context.Context, from time.Time, days int) ([]model.Prediction, error) {
	to := from.AddDate(0, 0, days)
	return s.queryPredictions(ctx,
		`SELECT `+sqlitePredictionColumns+` FROM predictions
		 WHERE predicted_start >= ? AND predicted_start < ?
		 ORDER BY predicted_start, id`,
		from, to,
	)
}

func (s *SQLiteStore) queryPredictions(ctx context.Context, query string, args ...any) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var preds []model.Prediction
	for rows.Next() {
		p, err := scanPredictionRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		preds = append(preds, *p)
	}
	return preds, eris.Wrap(rows.Err(), "sqlite: iterate predictions")
}

func scanPredictionRow(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	if err := row.Scan(&p.ID, &p.BrandID, &p.SourceWindowID, &p.TargetYear, &p.PredictedStart,
		&p.PredictedEnd, &p.DiscountSummary, &p.HolidayAnchor, &p.ReferenceURL, &p.Confidence,
		&p.CalendarEventID, &p.NotifiedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Outcomes

const sqliteOutcomeColumns = `id, prediction_id, auto_result, auto_verified_at, matched_sale_ids,
	manual_override, manual_result, override_reason, overridden_at, actual_start, actual_end,
	actual_discount, timing_delta_days, discount_delta, created_at`

func (s *SQLiteStore) GetOutcome(ctx context.Context, predictionID string) (*model.PredictionOutcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteOutcomeColumns+` FROM prediction_outcomes WHERE prediction_id = ?`,
		predictionID,
	)
	o, err := scanOutcomeRow(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "outcome for prediction %s", predictionID)
		}
		return nil, eris.Wrapf(err, "sqlite: get outcome for prediction %s", predictionID)
	}
	return o, nil
}

func (s *SQLiteStore) UpsertAutoOutcome(ctx context.Context, o model.PredictionOutcome) error {
	matchedJSON, err := json.Marshal(o.MatchedSaleIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matched sale ids")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prediction_outcomes
		 (id, prediction_id, auto_result, auto_verified_at, matched_sale_ids,
		  actual_start, actual_end, actual_discount, timing_delta_days, discount_delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (prediction_id) DO UPDATE SET
		   auto_result = excluded.auto_result,
		   auto_verified_at = excluded.auto_verified_at,
		   matched_sale_ids = excluded.matched_sale_ids,
		   actual_start = excluded.actual_start,
		   actual_end = excluded.actual_end,
		   actual_discount = excluded.actual_discount,
		   timing_delta_days = excluded.timing_delta_days,
		   discount_delta = excluded.discount_delta
		 WHERE prediction_outcomes.manual_override = 0`,
		o.ID, o.PredictionID, string(o.AutoResult), o.AutoVerifiedAt, string(matchedJSON),
		o.ActualStart, o.ActualEnd, o.ActualDiscount, o.TimingDeltaDays, o.DiscountDelta,
		o.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert outcome for prediction %s", o.PredictionID)
}

func (s *SQLiteStore) OverrideOutcome(ctx context.Context, predictionID string, result model.Result, reason string) (*model.PredictionOutcome, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_outcomes
		 (id, prediction_id, manual_override, manual_result, override_reason, overridden_at, created_at)
		 VALUES (?, ?, 1, ?, ?, ?, ?)
		 ON CONFLICT (prediction_id) DO UPDATE SET
		   manual_override = 1,
		   manual_result = excluded.manual_result,
		   override_reason = excluded.override_reason,
		   overridden_at = excluded.overridden_at`,
		uuid.New().String(), predictionID, string(result), reason, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: override outcome for prediction %s", predictionID)
	}
	return s.GetOutcome(ctx, predictionID)
}

func (s *SQLiteStore) ListOutcomesForBrand(ctx context.Context, brandID string) ([]model.PredictionOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.id, o.prediction_id, o.auto_result, o.auto_verified_at, o.matched_sale_ids,
			o.manual_override, o.manual_result, o.override_reason, o.overridden_at,
			o.actual_start, o.actual_end, o.actual_discount, o.timing_delta_days,
			o.discount_delta, o.created_at
		 FROM prediction_outcomes o
		 JOIN predictions p ON p.id = o.prediction_id
		 WHERE p.brand_id = ?
		 ORDER BY p.predicted_start, o.id`,
		brandID,
	)
}

func (s *SQLiteStore) ListRecentOutcomesWithTiming(ctx context.Context, brandID string, limit int) ([]model.PredictionOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.id, o.prediction_id, o.auto_result, o.auto_verified_at, o.matched_sale_ids,
			o.manual_override, o.manual_result, o.override_reason, o.overridden_at,
			o.actual_start, o.actual_end, o.actual_discount, o.timing_delta_days,
			o.discount_delta, o.created_at
		 FROM prediction_outcomes o
		 JOIN predictions p ON p.id = o.prediction_id
		 WHERE p.brand_id = ? AND o.timing_delta_days IS NOT NULL
		   AND (o.auto_result <> '' OR (o.manual_override = 1 AND o.manual_result <> ''))
		 ORDER BY p.predicted_start DESC
		 LIMIT ?`,
		brandID, limit,
	)
}

func (s *SQLiteStore) queryOutcomes(ctx context.Context, query string, args ...any) ([]model.PredictionOutcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.PredictionOutcome
	for rows.Next() {
		o, err := scanOutcomeRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, eris.Wrap(rows.Err(), "sqlite: iterate outcomes")
}

func scanOutcomeRow(row rowScanner) (*model.PredictionOutcome, error) {
	var o model.PredictionOutcome
	var matchedJSON sql.NullString
	var autoResult, manualResult string
	if err := row.Scan(&o.ID, &o.PredictionID, &autoResult, &o.AutoVerifiedAt, &matchedJSON,
		&o.ManualOverride, &manualResult, &o.OverrideReason, &o.OverriddenAt, &o.ActualStart,
		&o.ActualEnd, &o.ActualDiscount, &o.TimingDeltaDays, &o.DiscountDelta,
		&o.CreatedAt); err != nil {
		return nil, err
	}
	o.AutoResult = model.Result(autoResult)
	o.ManualResult = model.Result(manualResult)
	if matchedJSON.Valid && matchedJSON.String != "" {
		if err := json.Unmarshal([]byte(matchedJSON.String), &o.MatchedSaleIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal matched sale ids")
		}
	}
	return &o, nil
}

// Accuracy stats

func (s *SQLiteStore) GetBrandStats(ctx context.Context, brandID string) (*model.BrandAccuracyStats, error) {
	var st model.BrandAccuracyStats
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, total_predictions, correct_predictions, partial_predictions,
			missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
			avg_discount_delta, reliability_score, reliability_tier, last_calculated_at
		 FROM brand_accuracy_stats WHERE brand_id = ?`,
		brandID,
	).Scan(&st.ID, &st.BrandID, &st.TotalPredictions, &st.CorrectPredictions,
		&st.PartialPredictions, &st.MissedPredictions, &st.HitRate, &st.AvgTimingDeltaDays,
		&st.TimingDeltaStd, &st.AvgDiscountDelta, &st.ReliabilityScore, &tier,
		&st.LastCalculatedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "stats for brand %s", brandID)
		}
		return nil, eris.Wrapf(err, "sqlite: get stats for brand %s", brandID)
	}
	st.ReliabilityTier = model.ReliabilityTier(tier)
	return &st, nil
}

func (s *SQLiteStore) UpsertBrandStats(ctx context.Context, st model.BrandAccuracyStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brand_accuracy_stats
		 (id, brand_id, total_predictions, correct_predictions, partial_predictions,
		  missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
		  avg_discount_delta, reliability_score, reliability_tier, last_calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_id) DO UPDATE SET
		   total_predictions = excluded.total_predictions,
		   correct_predictions = excluded.correct_predictions,
		   partial_predictions = excluded.partial_predictions,
		   missed_predictions = excluded.missed_predictions,
		   hit_rate = excluded.hit_rate,
		   avg_timing_delta_days = excluded.avg_timing_delta_days,
		   timing_delta_std = excluded.timing_delta_std,
		   avg_discount_delta = excluded.avg_discount_delta,
		   reliability_score = excluded.reliability_score,
		   reliability_tier = excluded.reliability_tier,
		   last_calculated_at = excluded.last_calculated_at`,
		st.ID, st.BrandID, st.TotalPredictions, st.CorrectPredictions, st.PartialPredictions,
		st.MissedPredictions, st.HitRate, st.AvgTimingDeltaDays, st.TimingDeltaStd,
		st.AvgDiscountDelta, st.ReliabilityScore, string(st.ReliabilityTier),
		st.LastCalculatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert stats for brand %s", st.BrandID)
}

func (s *SQLiteStore) ListBrandStats(ctx context.Context) ([]model.BrandAccuracyStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, total_predictions, correct_predictions, partial_predictions,
			missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
			avg_discount_delta, reliability_score, reliability_tier, last_calculated_at
		 FROM brand_accuracy_stats ORDER BY brand_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list brand stats")
	}
	defer rows.Close()

	var records []model.BrandAccuracyStats
	for rows.Next() {
		var st model.BrandAccuracyStats
		var tier string
		if err := rows.Scan(&st.ID, &st.BrandID, &st.TotalPredictions, &st.CorrectPredictions,
			&st.PartialPredictions, &st.MissedPredictions, &st.HitRate, &st.AvgTimingDeltaDays,
			&st.TimingDeltaStd, &st.AvgDiscountDelta, &st.ReliabilityScore, &tier,
			&st.LastCalculatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan brand stats")
		}
		st.ReliabilityTier = model.ReliabilityTier(tier)
		records = append(records, st)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate brand stats")
}

// Adjustment suggestions

const sqliteSuggestionColumns = `id, brand_id, type, description, recommended_action,
	supporting_data, status, resolved_at, created_at`

func (s *SQLiteStore) CreateSuggestion(ctx context.Context, sg model.AdjustmentSuggestion) error {
	dataJSON, err := json.Marshal(sg.SupportingData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal supporting data")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO adjustment_suggestions (`+sqliteSuggestionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.BrandID, string(sg.Type), sg.Description, sg.RecommendedAction,
		string(dataJSON), string(sg.Status), sg.ResolvedAt, sg.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert suggestion %s", sg.ID)
}

func (s *SQLiteStore) HasPendingSuggestion(ctx context.Context, brandID string, typ model.SuggestionType) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM adjustment_suggestions
		 WHERE brand_id = ? AND type = ? AND status = ?`,
		brandID, string(typ), string(model.SuggestionPending),
	).Scan(&count)
	return count > 0, eris.Wrap(err, "sqlite: check pending suggestion")
}

func (s *SQLiteStore) ListSuggestions(ctx context.Context, status model.SuggestionStatus) ([]model.AdjustmentSuggestion, error) {
	query := `SELECT ` + sqliteSuggestionColumns + ` FROM adjustment_suggestions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suggestions")
	}
	defer rows.Close()

	var suggestions []model.AdjustmentSuggestion
	for rows.Next() {
		sg, err := scanSuggestionRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suggestion")
		}
		suggestions = append(suggestions, *sg)
	}
	return suggestions, eris.Wrap(rows.Err(), "sqlite: iterate suggestions")
}

func (s *SQLiteStore) ResolveSuggestion(ctx context.Context, id string, status model.SuggestionStatus) (*model.AdjustmentSuggestion, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE adjustment_suggestions SET status = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), time.Now().UTC(), id, string(model.SuggestionPending),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: resolve suggestion %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return nil, eris.Wrapf(ErrNotFound, "pending suggestion %s", id)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSuggestionColumns+` FROM adjustment_suggestions WHERE id = ?`, id,
	)
	sg, err := scanSuggestionRow(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get suggestion %s", id)
	}
	return sg, nil
}

func scanSuggestionRow(row rowScanner) (*model.AdjustmentSuggestion, error) {
	var sg model.AdjustmentSuggestion
	var dataJSON sql.NullString
	var typ, status string
	if err := row.Scan(&sg.ID, &sg.BrandID, &typ, &sg.Description, &sg.RecommendedAction,
		&dataJSON, &status, &sg.ResolvedAt, &sg.CreatedAt); err != nil {
		return nil, err
	}
	sg.Type = model.SuggestionType(typ)
	sg.Status = model.SuggestionStatus(status)
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &sg.SupportingData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal supporting data")
		}
	}
	return &sg, nil
}

// WithBrandLock serializes per-brand work with an in-process keyed mutex.
func (s *SQLiteStore) WithBrandLock(ctx context.Context, brandID string, fn func(context.Context) error) error {
	s.mu.Lock()
	lock, ok := s.locks[brandID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[brandID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return eris.Wrapf(err, "sqlite: rollback failed: %v", rbErr)
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}
