package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/highcountry-realty/market-cli/internal/db"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/resilience"
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

// upsertConcurrency caps parallel row upserts in UpsertListings.
const upsertConcurrency = 8

const upsertListingSQL = `INSERT INTO listings
	 (mls_number, status, price, address, beds, baths, sqft, year_built, days_on_market, price_per_sqft, location, month, year, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
	 ON CONFLICT (address, month, year, location) DO UPDATE SET
	   mls_number = EXCLUDED.mls_number, status = EXCLUDED.status, price = EXCLUDED.price,
	   beds = EXCLUDED.beds, baths = EXCLUDED.baths, sqft = EXCLUDED.sqft,
	   year_built = EXCLUDED.year_built, days_on_market = EXCLUDED.days_on_market,
	   price_per_sqft = EXCLUDED.price_per_sqft, updated_at = now()`

const upsertPriceStatsSQL = `INSERT INTO price_stats
	 (location, month, year, price_per_sqft, average_price, median_price, total_sales, median_days_on_market, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	 ON CONFLICT (location, month, year) DO UPDATE SET
	   price_per_sqft = EXCLUDED.price_per_sqft, average_price = EXCLUDED.average_price,
	   median_price = EXCLUDED.median_price, total_sales = EXCLUDED.total_sales,
	   median_days_on_market = EXCLUDED.median_days_on_market, updated_at = now()`

const upsertDomStatsSQL = `INSERT INTO dom_stats
	 (location, month, year, average_days_on_market, median_days_on_market, updated_at)
	 VALUES ($1, $2, $3, $4, $5, now())
	 ON CONFLICT (location, month, year) DO UPDATE SET
	   average_days_on_market = EXCLUDED.average_days_on_market,
	   median_days_on_market = EXCLUDED.median_days_on_market, updated_at = now()`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot upsert path.
var preparedStatements = map[string]string{
	"upsert_listing":     upsertListingSQL,
	"upsert_price_stats": upsertPriceStatsSQL,
	"upsert_dom_stats":   upsertDomStatsSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mls_number     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	price          BIGINT NOT NULL,
	address        TEXT NOT NULL,
	beds           INTEGER NOT NULL DEFAULT 0,
	baths          DOUBLE PRECISION NOT NULL DEFAULT 0,
	sqft           INTEGER NOT NULL DEFAULT 0,
	year_built     INTEGER,
	days_on_market INTEGER,
	price_per_sqft INTEGER,
	location       TEXT NOT NULL,
	month          INTEGER NOT NULL,
	year           INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (address, month, year, location)
);

CREATE INDEX IF NOT EXISTS idx_listings_location_period ON listings(location, year, month);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_listings_mls_number ON listings(mls_number);

CREATE TABLE IF NOT EXISTS price_stats (
	location              TEXT NOT NULL,
	month                 INTEGER NOT NULL,
	year                  INTEGER NOT NULL,
	price_per_sqft        INTEGER NOT NULL DEFAULT 0,
	average_price         BIGINT NOT NULL DEFAULT 0,
	median_price          BIGINT NOT NULL DEFAULT 0,
	total_sales           INTEGER NOT NULL DEFAULT 0,
	median_days_on_market INTEGER NOT NULL DEFAULT 0,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (location, month, year)
);

CREATE TABLE IF NOT EXISTS dom_stats (
	location               TEXT NOT NULL,
	month                  INTEGER NOT NULL,
	year                   INTEGER NOT NULL,
	average_days_on_market INTEGER NOT NULL DEFAULT 0,
	median_days_on_market  INTEGER NOT NULL DEFAULT 0,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (location, month, year)
);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	location    TEXT NOT NULL,
	month       INTEGER NOT NULL,
	year        INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	errors      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_import_runs_location ON import_runs(location, year, month);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	file_name      TEXT NOT NULL,
	location       TEXT NOT NULL,
	month          INTEGER NOT NULL,
	year           INTEGER NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_phase   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
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

func (s *PostgresStore) UpsertListing(ctx context.Context, l model.Listing) error {
	if err := validateKey(l.Location, l.Month, l.Year); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertListingSQL,
		l.MLSNumber, string(l.Status), l.Price, l.Address,
		l.Beds, l.Baths, l.Sqft, l.YearBuilt, l.DaysOnMarket, l.PricePerSqft,
		string(l.Location), l.Month, l.Year,
	)
	return eris.Wrapf(err, "postgres: upsert listing %s", l.MLSNumber)
}

// UpsertListings upserts each listing independently. A failed row is
// reported in the result, not returned as an error; the rest of the batch
// still lands.
func (s *PostgresStore) UpsertListings(ctx context.Context, listings []model.Listing) (*model.ImportResult, error) {
	var mu sync.Mutex
	result := &model.ImportResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertConcurrency)

	for _, l := range listings {
		g.Go(func() error {
			err := s.UpsertListing(gctx, l)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", l.MLSNumber, err))
				return nil
			}
			result.Succeeded++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, eris.Wrap(err, "postgres: upsert listings")
	}
	return result, nil
}

// listingColumns is the COPY column order for bulk imports.
var listingColumns = []string{
	"mls_number", "status", "price", "address", "beds", "baths", "sqft",
	"year_built", "days_on_market", "price_per_sqft", "location", "month", "year",
}

// BulkImportListings loads a large batch through a temp table and a single
// INSERT ... ON CONFLICT, the fast path for CSV and XLSX imports.
func (s *PostgresStore) BulkImportListings(ctx context.Context, listings []model.Listing) (int64, error) {
	rows := make([][]any, 0, len(listings))
	for _, l := range listings {
		if err := validateKey(l.Location, l.Month, l.Year); err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			l.MLSNumber, string(l.Status), l.Price, l.Address,
			l.Beds, l.Baths, l.Sqft, l.YearBuilt, l.DaysOnMarket, l.PricePerSqft,
			string(l.Location), l.Month, l.Year,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "listings",
		Columns:      listingColumns,
		ConflictKeys: []string{"address", "month", "year", "location"},
	}, rows)
}

func (s *PostgresStore) ListListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error) {
	query := `SELECT mls_number, status, price, address, beds, baths, sqft, year_built, days_on_market, price_per_sqft, location, month, year
	          FROM listings WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Location != "" {
		query += fmt.Sprintf(` AND location = $%d`, argIdx)
		args = append(args, string(filter.Location))
		argIdx++
	}
	if filter.Month > 0 {
		query += fmt.Sprintf(` AND month = $%d`, argIdx)
		args = append(args, filter.Month)
		argIdx++
	}
	if filter.Year > 0 {
		query += fmt.Sprintf(` AND year = $%d`, argIdx)
		args = append(args, filter.Year)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY price DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		var status, location string
		if err := rows.Scan(&l.MLSNumber, &status, &l.Price, &l.Address,
			&l.Beds, &l.Baths, &l.Sqft, &l.YearBuilt, &l.DaysOnMarket, &l.PricePerSqft,
			&location, &l.Month, &l.Year); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		l.Status = model.Status(status)
		l.Location = model.Location(location)
		listings = append(listings, l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) UpsertPriceStats(ctx context.Context, stats model.PriceStats) error {
	if err := validateKey(stats.Location, stats.Month, stats.Year); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertPriceStatsSQL,
		string(stats.Location), stats.Month, stats.Year,
		stats.PricePerSqft, stats.AveragePrice, stats.MedianPrice,
		stats.TotalSales, stats.MedianDaysOnMkt,
	)
	return eris.Wrapf(err, "postgres: upsert price stats %s %d/%d", stats.Location, stats.Month, stats.Year)
}

func (s *PostgresStore) UpsertDomStats(ctx context.Context, stats model.DomStats) error {
	if err := validateKey(stats.Location, stats.Month, stats.Year); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertDomStatsSQL,
		string(stats.Location), stats.Month, stats.Year,
		stats.AverageDaysOnMkt, stats.MedianDaysOnMkt,
	)
	return eris.Wrapf(err, "postgres: upsert dom stats %s %d/%d", stats.Location, stats.Month, stats.Year)
}

func (s *PostgresStore) GetPriceStats(ctx context.Context, loc model.Location, month, year int) (*model.PriceStats, error) {
	var ps model.PriceStats
	var location string

	err := s.pool.QueryRow(ctx,
		`SELECT location, month, year, price_per_sqft, average_price, median_price, total_sales, median_days_on_market
		 FROM price_stats WHERE location = $1 AND month = $2 AND year = $3`,
		string(loc), month, year,
	).Scan(&location, &ps.Month, &ps.Year, &ps.PricePerSqft, &ps.AveragePrice,
		&ps.MedianPrice, &ps.TotalSales, &ps.MedianDaysOnMkt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get price stats")
	}
	ps.Location = model.Location(location)
	return &ps, nil
}

func (s *PostgresStore) GetDomStats(ctx context.Context, loc model.Location, month, year int) (*model.DomStats, error) {
	var ds model.DomStats
	var location string

	err := s.pool.QueryRow(ctx,
		`SELECT location, month, year, average_days_on_market, median_days_on_market
		 FROM dom_stats WHERE location = $1 AND month = $2 AND year = $3`,
		string(loc), month, year,
	).Scan(&location, &ds.Month, &ds.Year, &ds.AverageDaysOnMkt, &ds.MedianDaysOnMkt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get dom stats")
	}
	ds.Location = model.Location(location)
	return &ds, nil
}

func (s *PostgresStore) CreateImportRun(ctx context.Context, source string, loc model.Location, month, year int) (*ImportRun, error) {
	if err := validateKey(loc, month, year); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, location, month, year, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, source, string(loc), month, year, string(ImportRunRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert import run")
	}

	return &ImportRun{
		ID:        id,
		Source:    source,
		Location:  loc,
		Month:     month,
		Year:      year,
		Status:    ImportRunRunning,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishImportRun(ctx context.Context, runID string, status ImportRunStatus, result *model.ImportResult) error {
	var errorsJSON []byte
	var succeeded, failed, skipped int
	if result != nil {
		succeeded = result.Succeeded
		failed = result.Failed
		skipped = result.Skipped
		if len(result.Errors) > 0 {
			var err error
			errorsJSON, err = json.Marshal(result.Errors)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal import errors")
			}
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, succeeded = $2, failed = $3, skipped = $4, errors = $5, finished_at = $6 WHERE id = $7`,
		string(status), succeeded, failed, skipped, errorsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish import run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import run not found: %s", runID)
	}
	return nil
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, file_name, location, month, year, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $6, error_type = $7, failed_phase = $8, retry_count = $9,
		   next_retry_at = $11, last_failed_at = $13`,
		entry.ID, entry.FileName, entry.Location, entry.Month, entry.Year,
		entry.Error, entry.ErrorType, entry.FailedPhase,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, file_name, location, month, year, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.Location != "" {
		query += fmt.Sprintf(` AND location = $%d`, argIdx)
		args = append(args, filter.Location)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var failedPhase *string
		if err := rows.Scan(&e.ID, &e.FileName, &e.Location, &e.Month, &e.Year,
			&e.Error, &e.ErrorType, &failedPhase, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if failedPhase != nil {
			e.FailedPhase = *failedPhase
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}
