package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salewatch-cli/internal/db"
	"github.com/sells-group/salewatch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresWithPool wires an existing pool, used by tests.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS brands (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                TEXT NOT NULL,
	slug                TEXT NOT NULL UNIQUE,
	active              BOOLEAN NOT NULL DEFAULT TRUE,
	excluded_categories JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sale_windows (
	id               TEXT PRIMARY KEY,
	brand_id         TEXT NOT NULL REFERENCES brands(id),
	name             TEXT NOT NULL,
	discount_summary TEXT NOT NULL,
	start_date       TIMESTAMPTZ NOT NULL,
	end_date         TIMESTAMPTZ NOT NULL,
	holiday_anchor   TEXT NOT NULL DEFAULT '',
	sitewide         BOOLEAN NOT NULL DEFAULT FALSE,
	categories       JSONB,
	year             INTEGER NOT NULL,
	member_sale_ids  JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS detected_sales (
	id             TEXT PRIMARY KEY,
	brand_id       TEXT NOT NULL REFERENCES brands(id),
	discount_type  TEXT NOT NULL,
	discount_value DOUBLE PRECISION,
	discount_max   DOUBLE PRECISION,
	sitewide       BOOLEAN NOT NULL DEFAULT FALSE,
	categories     JSONB,
	sale_start     TIMESTAMPTZ,
	sale_end       TIMESTAMPTZ,
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_status  TEXT NOT NULL DEFAULT 'pending',
	source_date    TIMESTAMPTZ NOT NULL,
	source_url     TEXT NOT NULL DEFAULT '',
	window_id      TEXT REFERENCES sale_windows(id),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS predictions (
	id                TEXT PRIMARY KEY,
	brand_id          TEXT NOT NULL REFERENCES brands(id),
	source_window_id  TEXT NOT NULL REFERENCES sale_windows(id),
	target_year       INTEGER NOT NULL,
	predicted_start   TIMESTAMPTZ NOT NULL,
	predicted_end     TIMESTAMPTZ NOT NULL,
	discount_summary  TEXT NOT NULL,
	holiday_anchor    TEXT NOT NULL DEFAULT '',
	reference_url     TEXT NOT NULL DEFAULT '',
	confidence        DOUBLE PRECISION NOT NULL,
	calendar_event_id TEXT NOT NULL DEFAULT '',
	notified_at       TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_window_id, target_year)
);

CREATE TABLE IF NOT EXISTS prediction_outcomes (
	id                TEXT PRIMARY KEY,
	prediction_id     TEXT NOT NULL UNIQUE REFERENCES predictions(id),
	auto_result       TEXT NOT NULL DEFAULT '',
	auto_verified_at  TIMESTAMPTZ,
	matched_sale_ids  JSONB,
	manual_override   BOOLEAN NOT NULL DEFAULT FALSE,
	manual_result     TEXT NOT NULL DEFAULT '',
	override_reason   TEXT NOT NULL DEFAULT '',
	overridden_at     TIMESTAMPTZ,
	actual_start      TIMESTAMPTZ,
	actual_end        TIMESTAMPTZ,
	actual_discount   DOUBLE PRECISION,
	timing_delta_days INTEGER,
	discount_delta    DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS brand_accuracy_stats (
	id                    TEXT PRIMARY KEY,
	brand_id              TEXT NOT NULL UNIQUE REFERENCES brands(id),
	total_predictions     INTEGER NOT NULL,
	correct_predictions   INTEGER NOT NULL,
	partial_predictions   INTEGER NOT NULL,
	missed_predictions    INTEGER NOT NULL,
	hit_rate              DOUBLE PRECISION NOT NULL,
	avg_timing_delta_days DOUBLE PRECISION,
	timing_delta_std      DOUBLE PRECISION,
	avg_discount_delta    DOUBLE PRECISION,
	reliability_score     INTEGER NOT NULL,
	reliability_tier      TEXT NOT NULL,
	last_calculated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS adjustment_suggestions (
	id                 TEXT PRIMARY KEY,
	brand_id           TEXT NOT NULL REFERENCES brands(id),
	type               TEXT NOT NULL,
	description        TEXT NOT NULL,
	recommended_action TEXT NOT NULL,
	supporting_data    JSONB,
	status             TEXT NOT NULL DEFAULT 'pending',
	resolved_at        TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sales_brand_status ON detected_sales(brand_id, review_status);
CREATE INDEX IF NOT EXISTS idx_sales_window ON detected_sales(window_id);
CREATE INDEX IF NOT EXISTS idx_sales_source_date ON detected_sales(source_date);
CREATE INDEX IF NOT EXISTS idx_windows_brand_year ON sale_windows(brand_id, year);
CREATE INDEX IF NOT EXISTS idx_predictions_brand_year ON predictions(brand_id, target_year);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_start ON predictions(predicted_start);
CREATE INDEX IF NOT EXISTS idx_predictions_predicted_end ON predictions(predicted_end);
CREATE INDEX IF NOT EXISTS idx_suggestions_status ON adjustment_suggestions(status);
CREATE INDEX IF NOT EXISTS idx_suggestions_brand ON adjustment_suggestions(brand_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Brands

func (s *PostgresStore) CreateBrand(ctx context.Context, b model.Brand) error {
	excludedJSON, err := json.Marshal(b.ExcludedCategories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal excluded categories")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO brands (id, name, slug, active, excluded_categories, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Name, b.Slug, b.Active, excludedJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: insert brand %s", b.Slug)
}

func (s *PostgresStore) GetBrand(ctx context.Context, idOrSlug string) (*model.Brand, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, active, excluded_categories, created_at, updated_at
		 FROM brands WHERE id = $1 OR slug = $1`,
		idOrSlug,
	)
	b, err := scanBrand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "brand %s", idOrSlug)
		}
		return nil, eris.Wrapf(err, "postgres: get brand %s", idOrSlug)
	}
	return b, nil
}

func (s *PostgresStore) ListBrands(ctx context.Context, activeOnly bool) ([]model.Brand, error) {
	query := `SELECT id, name, slug, active, excluded_categories, created_at, updated_at FROM brands`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY slug`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list brands")
	}
	defer rows.Close()

	var brands []model.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan brand")
		}
		brands = append(brands, *b)
	}
	return brands, eris.Wrap(rows.Err(), "postgres: list brands iterate")
}

func scanBrand(row pgx.Row) (*model.Brand, error) {
	var b model.Brand
	var excludedJSON []byte
	if err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Active, &excludedJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &b.ExcludedCategories); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal excluded categories")
		}
	}
	return &b, nil
}

// Detected sales

const saleColumns = `id, brand_id, discount_type, discount_value, discount_max, sitewide,
	categories, sale_start, sale_end, confidence, review_status, source_date, source_url, created_at`

func (s *PostgresStore) InsertDetectedSales(ctx context.Context, sales []model.DetectedSale) error {
	if len(sales) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, sale := range sales {
			categoriesJSON, err := json.Marshal(sale.Categories)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal sale categories")
			}
			if sale.ID == "" {
				sale.ID = uuid.New().String()
			}
			if sale.CreatedAt.IsZero() {
				sale.CreatedAt = time.Now().UTC()
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO detected_sales (`+saleColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				sale.ID, sale.BrandID, string(sale.DiscountType), sale.DiscountValue,
				sale.DiscountMax, sale.Sitewide, categoriesJSON, sale.SaleStart, sale.SaleEnd,
				sale.Confidence, string(sale.ReviewStatus), sale.SourceDate, sale.SourceURL,
				sale.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert sale %s", sale.ID)
			}
		}
		return nil
	})
}

// BulkImportSales loads detected sales through the COPY protocol. Suited to
// large backfills where per-row INSERT round-trips are too slow.
func (s *PostgresStore) BulkImportSales(ctx context.Context, sales []model.DetectedSale) (int64, error) {
	if len(sales) == 0 {
		return 0, nil
	}
	columns := []string{
		"id", "brand_id", "discount_type", "discount_value", "discount_max", "sitewide",
		"categories", "sale_start", "sale_end", "confidence", "review_status",
		"source_date", "source_url", "created_at",
	}
	rows := make([][]any, 0, len(sales))
	for _, sale := range sales {
		categoriesJSON, err := json.Marshal(sale.Categories)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal sale categories")
		}
		if sale.ID == "" {
			sale.ID = uuid.New().String()
		}
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			sale.ID, sale.BrandID, string(sale.DiscountType), sale.DiscountValue,
			sale.DiscountMax, sale.Sitewide, categoriesJSON, sale.SaleStart, sale.SaleEnd,
			sale.Confidence, string(sale.ReviewStatus), sale.SourceDate, sale.SourceURL,
			sale.CreatedAt,
		})
	}
	n, err := db.CopyFrom(ctx, s.pool, "detected_sales", columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy sales")
	}
	return n, nil
}

func (s *PostgresStore) ListUnprocessedSales(ctx context.Context, brandID string) ([]model.DetectedSale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM detected_sales
		 WHERE brand_id = $1 AND review_status = $2 AND window_id IS NULL
		 ORDER BY source_date, id`,
		brandID, string(model.ReviewApproved),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed sales")
	}
	return collectSales(rows)
}

func (s *PostgresStore) ListApprovedSalesInRange(ctx context.Context, brandID string, from, to time.Time) ([]model.DetectedSale, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM detected_sales
		 WHERE brand_id = $1 AND review_status = $2
		   AND COALESCE(sale_start, source_date) >= $3
		   AND COALESCE(sale_start, source_date) <= $4
		 ORDER BY source_date, id`,
		brandID, string(model.ReviewApproved), from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sales in range")
	}
	return collectSales(rows)
}

func (s *PostgresStore) ListSalesByIDs(ctx context.Context, ids []string) ([]model.DetectedSale, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM detected_sales WHERE id = ANY($1) ORDER BY source_date, id`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sales by ids")
	}
	return collectSales(rows)
}

func collectSales(rows pgx.Rows) ([]model.DetectedSale, error) {
	defer rows.Close()
	var sales []model.DetectedSale
	for rows.Next() {
		var sale model.DetectedSale
		var categoriesJSON []byte
		var discountType, reviewStatus string
		if err := rows.Scan(&sale.ID, &sale.BrandID, &discountType, &sale.DiscountValue,
			&sale.DiscountMax, &sale.Sitewide, &categoriesJSON, &sale.SaleStart, &sale.SaleEnd,
			&sale.Confidence, &reviewStatus, &sale.SourceDate, &sale.SourceURL,
			&sale.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sale")
		}
		sale.DiscountType = model.DiscountType(discountType)
		sale.ReviewStatus = model.ReviewStatus(reviewStatus)
		if len(categoriesJSON) > 0 {
			if err := json.Unmarshal(categoriesJSON, &sale.Categories); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal sale categories")
			}
		}
		sales = append(sales, sale)
	}
	return sales, eris.Wrap(rows.Err(), "postgres: iterate sales")
}

// Sale windows

const windowColumns = `id, brand_id, name, discount_summary, start_date, end_date,
	holiday_anchor, sitewide, categories, year, member_sale_ids, created_at`

func (s *PostgresStore) CreateSaleWindows(ctx context.Context, windows []model.SaleWindow) error {
	if len(windows) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, w := range windows {
			categoriesJSON, err := json.Marshal(w.Categories)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal window categories")
			}
			membersJSON, err := json.Marshal(w.MemberSaleIDs)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal member sale ids")
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO sale_windows (`+windowColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				w.ID, w.BrandID, w.Name, w.DiscountSummary, w.StartDate, w.EndDate,
				w.HolidayAnchor, w.Sitewide, categoriesJSON, w.Year, membersJSON, w.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert window %s", w.ID)
			}
			_, err = tx.Exec(ctx,
				`UPDATE detected_sales SET window_id = $1 WHERE id = ANY($2)`,
				w.ID, w.MemberSaleIDs,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: link sales to window %s", w.ID)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListWindows(ctx context.Context, brandID string) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+windowColumns+` FROM sale_windows WHERE brand_id = $1 ORDER BY start_date, id`,
		brandID,
	)
}

func (s *PostgresStore) ListWindowsByYear(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+windowColumns+` FROM sale_windows
		 WHERE brand_id = $1 AND year = $2 ORDER BY start_date, id`,
		brandID, year,
	)
}

func (s *PostgresStore) ListWindowsBefore(ctx context.Context, brandID string, year int) ([]model.SaleWindow, error) {
	return s.queryWindows(ctx,
		`SELECT `+windowColumns+` FROM sale_windows
		 WHERE brand_id = $1 AND year < $2 ORDER BY start_date, id`,
		brandID, year,
	)
}

func (s *PostgresStore) queryWindows(ctx context.Context, query string, args ...any) ([]model.SaleWindow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list windows")
	}
	defer rows.Close()

	var windows []model.SaleWindow
	for rows.Next() {
		var w model.SaleWindow
		var categoriesJSON, membersJSON []byte
		if err := rows.Scan(&w.ID, &w.BrandID, &w.Name, &w.DiscountSummary, &w.StartDate,
			&w.EndDate, &w.HolidayAnchor, &w.Sitewide, &categoriesJSON, &w.Year,
			&membersJSON, &w.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan window")
		}
		if len(categoriesJSON) > 0 {
			if err := json.Unmarshal(categoriesJSON, &w.Categories); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal window categories")
			}
		}
		if err := json.Unmarshal(membersJSON, &w.MemberSaleIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal member sale ids")
		}
		windows = append(windows, w)
	}
	return windows, eris.Wrap(rows.Err(), "postgres: iterate windows")
}

// Predictions

const predictionColumns = `id, brand_id, source_window_id, target_year, predicted_start,
	predicted_end, discount_summary, holiday_anchor, reference_url, confidence,
	calendar_event_id, notified_at, created_at`

func (s *PostgresStore) CreatePredictions(ctx context.Context, preds []model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, p := range preds {
			_, err := tx.Exec(ctx,
				`INSERT INTO predictions (`+predictionColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				p.ID, p.BrandID, p.SourceWindowID, p.TargetYear, p.PredictedStart,
				p.PredictedEnd, p.DiscountSummary, p.HolidayAnchor, p.ReferenceURL,
				p.Confidence, p.CalendarEventID, p.NotifiedAt, p.CreatedAt,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert prediction %s", p.ID)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE id = $1`,
		id,
	)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "prediction %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get prediction %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPredictionsForYear(ctx context.Context, brandID string, year int) ([]model.Prediction, error) {
	return s.queryPredictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions
		 WHERE brand_id = $1 AND target_year = $2 ORDER BY predicted_start, id`,
		brandID, year,
	)
}

func (s *PostgresStore) ListDuePredictions(ctx context.Context, brandID string, asOf time.Time, limit int) ([]model.Prediction, error) {
	query := `SELECT p.id, p.brand_id, p.source_window_id, p.target_year, p.predicted_start,
		p.predicted_end, p.discount_summary, p.holiday_anchor, p.reference_url, p.confidence,
		p.calendar_event_id, p.notified_at, p.created_at
	 FROM predictions p
	 LEFT JOIN prediction_outcomes o ON o.prediction_id = p.id
	 WHERE p.brand_id = $1 AND p.predicted_end < $2
	   AND (o.prediction_id IS NULL OR (o.auto_result = '' AND o.manual_override = FALSE))
	 ORDER BY p.predicted_end, p.id`
	args := []any{brandID, asOf}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	return s.queryPredictions(ctx, query, args...)
}

func (s *PostgresStore) ListUpcomingPredictions(ctx context.Context, from time.Time, days int) ([]model.Prediction, error) {
	to := from.AddDate(0, 0, days)
	return s.queryPredictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions
		 WHERE predicted_start >= $1 AND predicted_start < $2
		 ORDER BY predicted_start, id`,
		from, to,
	)
}

func (s *PostgresStore) queryPredictions(ctx context.Context, query string, args ...any) ([]model.Prediction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var preds []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		preds = append(preds, *p)
	}
	return preds, eris.Wrap(rows.Err(), "postgres: iterate predictions")
}

func scanPrediction(row pgx.Row) (*model.Prediction, error) {
	var p model.Prediction
	if err := row.Scan(&p.ID, &p.BrandID, &p.SourceWindowID, &p.TargetYear, &p.PredictedStart,
		&p.PredictedEnd, &p.DiscountSummary, &p.HolidayAnchor, &p.ReferenceURL, &p.Confidence,
		&p.CalendarEventID, &p.NotifiedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Outcomes

const outcomeColumns = `id, prediction_id, auto_result, auto_verified_at, matched_sale_ids,
	manual_override, manual_result, override_reason, overridden_at, actual_start, actual_end,
	actual_discount, timing_delta_days, discount_delta, created_at`

func (s *PostgresStore) GetOutcome(ctx context.Context, predictionID string) (*model.PredictionOutcome, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+outcomeColumns+` FROM prediction_outcomes WHERE prediction_id = $1`,
		predictionID,
	)
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "outcome for prediction %s", predictionID)
		}
		return nil, eris.Wrapf(err, "postgres: get outcome for prediction %s", predictionID)
	}
	return o, nil
}

func (s *PostgresStore) UpsertAutoOutcome(ctx context.Context, o model.PredictionOutcome) error {
	matchedJSON, err := json.Marshal(o.MatchedSaleIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matched sale ids")
	}

	// The WHERE guard settles override races: once manual_override is set
	// the automated fields are frozen.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO prediction_outcomes
		 (id, prediction_id, auto_result, auto_verified_at, matched_sale_ids,
		  actual_start, actual_end, actual_discount, timing_delta_days, discount_delta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (prediction_id) DO UPDATE SET
		   auto_result = $3, auto_verified_at = $4, matched_sale_ids = $5,
		   actual_start = $6, actual_end = $7, actual_discount = $8,
		   timing_delta_days = $9, discount_delta = $10
		 WHERE prediction_outcomes.manual_override = FALSE`,
		o.ID, o.PredictionID, string(o.AutoResult), o.AutoVerifiedAt, matchedJSON,
		o.ActualStart, o.ActualEnd, o.ActualDiscount, o.TimingDeltaDays, o.DiscountDelta,
		o.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert outcome for prediction %s", o.PredictionID)
}

func (s *PostgresStore) OverrideOutcome(ctx context.Context, predictionID string, result model.Result, reason string) (*model.PredictionOutcome, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prediction_outcomes
		 (id, prediction_id, manual_override, manual_result, override_reason, overridden_at, created_at)
		 VALUES ($1, $2, TRUE, $3, $4, $5, $5)
		 ON CONFLICT (prediction_id) DO UPDATE SET
		   manual_override = TRUE, manual_result = $3, override_reason = $4, overridden_at = $5`,
		uuid.New().String(), predictionID, string(result), reason, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: override outcome for prediction %s", predictionID)
	}
	return s.GetOutcome(ctx, predictionID)
}

func (s *PostgresStore) ListOutcomesForBrand(ctx context.Context, brandID string) ([]model.PredictionOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.id, o.prediction_id, o.auto_result, o.auto_verified_at, o.matched_sale_ids,
			o.manual_override, o.manual_result, o.override_reason, o.overridden_at,
			o.actual_start, o.actual_end, o.actual_discount, o.timing_delta_days,
			o.discount_delta, o.created_at
		 FROM prediction_outcomes o
		 JOIN predictions p ON p.id = o.prediction_id
		 WHERE p.brand_id = $1
		 ORDER BY p.predicted_start, o.id`,
		brandID,
	)
}

func (s *PostgresStore) ListRecentOutcomesWithTiming(ctx context.Context, brandID string, limit int) ([]model.PredictionOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.id, o.prediction_id, o.auto_result, o.auto_verified_at, o.matched_sale_ids,
			o.manual_override, o.manual_result, o.override_reason, o.overridden_at,
			o.actual_start, o.actual_end, o.actual_discount, o.timing_delta_days,
			o.discount_delta, o.created_at
		 FROM prediction_outcomes o
		 JOIN predictions p ON p.id = o.prediction_id
		 WHERE p.brand_id = $1 AND o.timing_delta_days IS NOT NULL
		   AND (o.auto_result <> '' OR (o.manual_override AND o.manual_result <> ''))
		 ORDER BY p.predicted_start DESC
		 LIMIT $2`,
		brandID, limit,
	)
}

func (s *PostgresStore) queryOutcomes(ctx context.Context, query string, args ...any) ([]model.PredictionOutcome, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.PredictionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, eris.Wrap(rows.Err(), "postgres: iterate outcomes")
}

func scanOutcome(row pgx.Row) (*model.PredictionOutcome, error) {
	var o model.PredictionOutcome
	var matchedJSON []byte
	var autoResult, manualResult string
	if err := row.Scan(&o.ID, &o.PredictionID, &autoResult, &o.AutoVerifiedAt, &matchedJSON,
		&o.ManualOverride, &manualResult, &o.OverrideReason, &o.OverriddenAt, &o.ActualStart,
		&o.ActualEnd, &o.ActualDiscount, &o.TimingDeltaDays, &o.DiscountDelta,
		&o.CreatedAt); err != nil {
		return nil, err
	}
	o.AutoResult = model.Result(autoResult)
	o.ManualResult = model.Result(manualResult)
	if len(matchedJSON) > 0 {
		if err := json.Unmarshal(matchedJSON, &o.MatchedSaleIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal matched sale ids")
		}
	}
	return &o, nil
}

// Accuracy stats

func (s *PostgresStore) GetBrandStats(ctx context.Context, brandID string) (*model.BrandAccuracyStats, error) {
	var st model.BrandAccuracyStats
	var tier string
	err := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, total_predictions, correct_predictions, partial_predictions,
			missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
			avg_discount_delta, reliability_score, reliability_tier, last_calculated_at
		 FROM brand_accuracy_stats WHERE brand_id = $1`,
		brandID,
	).Scan(&st.ID, &st.BrandID, &st.TotalPredictions, &st.CorrectPredictions,
		&st.PartialPredictions, &st.MissedPredictions, &st.HitRate, &st.AvgTimingDeltaDays,
		&st.TimingDeltaStd, &st.AvgDiscountDelta, &st.ReliabilityScore, &tier,
		&st.LastCalculatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "stats for brand %s", brandID)
		}
		return nil, eris.Wrapf(err, "postgres: get stats for brand %s", brandID)
	}
	st.ReliabilityTier = model.ReliabilityTier(tier)
	return &st, nil
}

func (s *PostgresStore) UpsertBrandStats(ctx context.Context, st model.BrandAccuracyStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO brand_accuracy_stats
		 (id, brand_id, total_predictions, correct_predictions, partial_predictions,
		  missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
		  avg_discount_delta, reliability_score, reliability_tier, last_calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (brand_id) DO UPDATE SET
		   total_predictions = $3, correct_predictions = $4, partial_predictions = $5,
		   missed_predictions = $6, hit_rate = $7, avg_timing_delta_days = $8,
		   timing_delta_std = $9, avg_discount_delta = $10, reliability_score = $11,
		   reliability_tier = $12, last_calculated_at = $13`,
		st.ID, st.BrandID, st.TotalPredictions, st.CorrectPredictions, st.PartialPredictions,
		st.MissedPredictions, st.HitRate, st.AvgTimingDeltaDays, st.TimingDeltaStd,
		st.AvgDiscountDelta, st.ReliabilityScore, string(st.ReliabilityTier),
		st.LastCalculatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert stats for brand %s", st.BrandID)
}

func (s *PostgresStore) ListBrandStats(ctx context.Context) ([]model.BrandAccuracyStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, brand_id, total_predictions, correct_predictions, partial_predictions,
			missed_predictions, hit_rate, avg_timing_delta_days, timing_delta_std,
			avg_discount_delta, reliability_score, reliability_tier, last_calculated_at
		 FROM brand_accuracy_stats ORDER BY brand_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list brand stats")
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
			return nil, eris.Wrap(err, "postgres: scan brand stats")
		}
		st.ReliabilityTier = model.ReliabilityTier(tier)
		records = append(records, st)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate brand stats")
}

// Adjustment suggestions

const suggestionColumns = `id, brand_id, type, description, recommended_action,
	supporting_data, status, resolved_at, created_at`

func (s *PostgresStore) CreateSuggestion(ctx context.Context, sg model.AdjustmentSuggestion) error {
	dataJSON, err := json.Marshal(sg.SupportingData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal supporting data")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO adjustment_suggestions (`+suggestionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sg.ID, sg.BrandID, string(sg.Type), sg.Description, sg.RecommendedAction,
		dataJSON, string(sg.Status), sg.ResolvedAt, sg.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert suggestion %s", sg.ID)
}

func (s *PostgresStore) HasPendingSuggestion(ctx context.Context, brandID string, typ model.SuggestionType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM adjustment_suggestions
			WHERE brand_id = $1 AND type = $2 AND status = $3
		 )`,
		brandID, string(typ), string(model.SuggestionPending),
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: check pending suggestion")
}

func (s *PostgresStore) ListSuggestions(ctx context.Context, status model.SuggestionStatus) ([]model.AdjustmentSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM adjustment_suggestions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suggestions")
	}
	defer rows.Close()

	var suggestions []model.AdjustmentSuggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan suggestion")
		}
		suggestions = append(suggestions, *sg)
	}
	return suggestions, eris.Wrap(rows.Err(), "postgres: iterate suggestions")
}

func (s *PostgresStore) ResolveSuggestion(ctx context.Context, id string, status model.SuggestionStatus) (*model.AdjustmentSuggestion, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE adjustment_suggestions SET status = $1, resolved_at = $2
		 WHERE id = $3 AND status = $4`,
		string(status), time.Now().UTC(), id, string(model.SuggestionPending),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: resolve suggestion %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "pending suggestion %s", id)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+suggestionColumns+` FROM adjustment_suggestions WHERE id = $1`, id,
	)
	sg, err := scanSuggestion(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get suggestion %s", id)
	}
	return sg, nil
}

func scanSuggestion(row pgx.Row) (*model.AdjustmentSuggestion, error) {
	var sg model.AdjustmentSuggestion
	var dataJSON []byte
	var typ, status string
	if err := row.Scan(&sg.ID, &sg.BrandID, &typ, &sg.Description, &sg.RecommendedAction,
		&dataJSON, &status, &sg.ResolvedAt, &sg.CreatedAt); err != nil {
		return nil, err
	}
	sg.Type = model.SuggestionType(typ)
	sg.Status = model.SuggestionStatus(status)
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &sg.SupportingData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal supporting data")
		}
	}
	return &sg, nil
}

// WithBrandLock serializes pipeline stages per brand with a transaction
// scoped advisory lock. The lock releases on commit or rollback.
func (s *PostgresStore) WithBrandLock(ctx context.Context, brandID string, fn func(context.Context) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, brandID); err != nil {
			return eris.Wrapf(err, "postgres: acquire brand lock %s", brandID)
		}
		return fn(ctx)
	})
}
