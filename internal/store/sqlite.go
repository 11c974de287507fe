package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	mls_number     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	price          INTEGER NOT NULL,
	address        TEXT NOT NULL,
	beds           INTEGER NOT NULL DEFAULT 0,
	baths          REAL NOT NULL DEFAULT 0,
	sqft           INTEGER NOT NULL DEFAULT 0,
	year_built     INTEGER,
	days_on_market INTEGER,
	price_per_sqft INTEGER,
	location       TEXT NOT NULL,
	month          INTEGER NOT NULL,
	year           INTEGER NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (address, month, year, location)
);

CREATE INDEX IF NOT EXISTS idx_listings_location_period ON listings(location, year, month);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);

CREATE TABLE IF NOT EXISTS price_stats (
	location              TEXT NOT NULL,
	month                 INTEGER NOT NULL,
	year                  INTEGER NOT NULL,
	price_per_sqft        INTEGER NOT NULL DEFAULT 0,
	average_price         INTEGER NOT NULL DEFAULT 0,
	median_price          INTEGER NOT NULL DEFAULT 0,
	total_sales           INTEGER NOT NULL DEFAULT 0,
	median_days_on_market INTEGER NOT NULL DEFAULT 0,
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (location, month, year)
);

CREATE TABLE IF NOT EXISTS dom_stats (
	location               TEXT NOT NULL,
	month                  INTEGER NOT NULL,
	year                   INTEGER NOT NULL,
	average_days_on_market INTEGER NOT NULL DEFAULT 0,
	median_days_on_market  INTEGER NOT NULL DEFAULT 0,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
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
	errors      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

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
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

const sqliteUpsertListing = `INSERT INTO listings
	 (id, mls_number, status, price, address, beds, baths, sqft, year_built, days_on_market, price_per_sqft, location, month, year, updated_at)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	 ON CONFLICT (address, month, year, location) DO UPDATE SET
	   mls_number = excluded.mls_number, status = excluded.status, price = excluded.price,
	   beds = excluded.beds, baths = excluded.baths, sqft = excluded.sqft,
	   year_built = excluded.year_built, days_on_market = excluded.days_on_market,
	   price_per_sqft = excluded.price_per_sqft, updated_at = datetime('now')`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertListing(ctx context.Context, l model.Listing) error {
	if err := validateKey(l.Location, l.Month, l.Year); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsertListing,
		uuid.New().String(), l.MLSNumber, string(l.Status), l.Price, l.Address,
		l.Beds, l.Baths, l.Sqft, l.YearBuilt, l.DaysOnMarket, l.PricePerSqft,
		string(l.Location), l.Month, l.Year,
	)
	return eris.Wrapf(err, "sqlite: upsert listing %s", l.MLSNumber)
}

// UpsertListings upserts rows sequentially; SQLite gains nothing from
// parallel writers on a single file.
func (s *SQLiteStore) UpsertListings(ctx context.Context, listings []model.Listing) (*model.ImportResult, error) {
	result := &model.ImportResult{}
	for _, l := range listings {
		if err := s.UpsertListing(ctx, l); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", l.MLSNumber, err))
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// BulkImportListings wraps the batch in a single transaction.
func (s *SQLiteStore) BulkImportListings(ctx context.Context, listings []model.Listing) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk import")
	}
	defer tx.Rollback()

	var n int64
	for _, l := range listings {
		if err := validateKey(l.Location, l.Month, l.Year); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, sqliteUpsertListing,
			uuid.New().String(), l.MLSNumber, string(l.Status), l.Price, l.Address,
			l.Beds, l.Baths, l.Sqft, l.YearBuilt, l.DaysOnMarket, l.PricePerSqft,
			string(l.Location), l.Month, l.Year,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk import listing %s", l.MLSNumber)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk import")
	}
	return n, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error) {
	query := `SELECT mls_number, status, price, address, beds, baths, sqft, year_built, days_on_market, price_per_sqft, location, month, year
	          FROM listings WHERE 1=1`
	var args []any

	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, string(filter.Location))
	}
	if filter.Month > 0 {
		query += ` AND month = ?`
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY price DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		var status, location string
		if err := rows.Scan(&l.MLSNumber, &status, &l.Price, &l.Address,
			&l.Beds, &l.Baths, &l.Sqft, &l.YearBuilt, &l.DaysOnMarket, &l.PricePerSqft,
			&location, &l.Month, &l.Year); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		l.Status = model.Status(status)
		l.Location = model.Location(location)
		listings = append(listings, l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) UpsertPriceStats(ctx context.Context, stats model.PriceStats) error {
	if err := validateKey(stats.Location, stats.Month, stats.Year); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_stats (location, month, year, price_per_sqft, average_price, median_price, total_sales, median_days_on_market, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (location, month, year) DO UPDATE SET
		   price_per_sqft = excluded.price_per_sqft, average_price = excluded.average_price,
		   median_price = excluded.median_price, total_sales = excluded.total_sales,
		   median_days_on_market = excluded.median_days_on_market, updated_at = datetime('now')`,
		string(stats.Location), stats.Month, stats.Year,
		stats.PricePerSqft, stats.AveragePrice, stats.MedianPrice,
		stats.TotalSales, stats.MedianDaysOnMkt,
	)
	return eris.Wrapf(err, "sqlite: upsert price stats %s %d/%d", stats.Location, stats.Month, stats.Year)
}

func (s *SQLiteStore) UpsertDomStats(ctx context.Context, stats model.DomStats) error {
	if err := validateKey(stats.Location, stats.Month, stats.Year); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dom_stats (location, month, year, average_days_on_market, median_days_on_market, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (location, month, year) DO UPDATE SET
		   average_days_on_market = excluded.average_days_on_market,
		   median_days_on_market = excluded.median_days_on_market, updated_at = datetime('now')`,
		string(stats.Location), stats.Month, stats.Year,
		stats.AverageDaysOnMkt, stats.MedianDaysOnMkt,
	)
	return eris.Wrapf(err, "sqlite: upsert dom stats %s %d/%d", stats.Location, stats.Month, stats.Year)
}

func (s *SQLiteStore) GetPriceStats(ctx context.Context, loc model.Location, month, year int) (*model.PriceStats, error) {
	var ps model.PriceStats
	var location string

	err := s.db.QueryRowContext(ctx,
		`SELECT location, month, year, price_per_sqft, average_price, median_price, total_sales, median_days_on_market
		 FROM price_stats WHERE location = ? AND month = ? AND year = ?`,
		string(loc), month, year,
	).Scan(&location, &ps.Month, &ps.Year, &ps.PricePerSqft, &ps.AveragePrice,
		&ps.MedianPrice, &ps.TotalSales, &ps.MedianDaysOnMkt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get price stats")
	}
	ps.Location = model.Location(location)
	return &ps, nil
}

func (s *SQLiteStore) GetDomStats(ctx context.Context, loc model.Location, month, year int) (*model.DomStats, error) {
	var ds model.DomStats
	var location string

	err := s.db.QueryRowContext(ctx,
		`SELECT location, month, year, average_days_on_market, median_days_on_market
		 FROM dom_stats WHERE location = ? AND month = ? AND year = ?`,
		string(loc), month, year,
	).Scan(&location, &ds.Month, &ds.Year, &ds.AverageDaysOnMkt, &ds.MedianDaysOnMkt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get dom stats")
	}
	ds.Location = model.Location(location)
	return &ds, nil
}

func (s *SQLiteStore) CreateImportRun(ctx context.Context, source string, loc model.Location, month, year int) (*ImportRun, error) {
	if err := validateKey(loc, month, year); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, location, month, year, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, string(loc), month, year, string(ImportRunRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert import run")
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

func (s *SQLiteStore) FinishImportRun(ctx context.Context, runID string, status ImportRunStatus, result *model.ImportResult) error {
	var errorsJSON sql.NullString
	var succeeded, failed, skipped int
	if result != nil {
		succeeded = result.Succeeded
		failed = result.Failed
		skipped = result.Skipped
		if len(result.Errors) > 0 {
			b, err := json.Marshal(result.Errors)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal import errors")
			}
			errorsJSON = sql.NullString{String: string(b), Valid: true}
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, succeeded = ?, failed = ?, skipped = ?, errors = ?, finished_at = ? WHERE id = ?`,
		string(status), succeeded, failed, skipped, errorsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish import run %s", runID)
	}
	return checkRowsAffected(res, "import run", runID)
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, file_name, location, month, year, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type,
		   failed_phase = excluded.failed_phase, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.FileName, entry.Location, entry.Month, entry.Year,
		entry.Error, entry.ErrorType, entry.FailedPhase,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, file_name, location, month, year, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= datetime('now') AND retry_count < max_retries`
	var args []any

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, filter.Location)
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var failedPhase sql.NullString
		if err := rows.Scan(&e.ID, &e.FileName, &e.Location, &e.Month, &e.Year,
			&e.Error, &e.ErrorType, &failedPhase, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if failedPhase.Valid {
			e.FailedPhase = failedPhase.String
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = datetime('now')
		 WHERE id = ?`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
