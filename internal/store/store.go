// Package store persists listings, monthly aggregates, and import runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/resilience"
)

// ImportRunStatus tracks the lifecycle of one import run.
type ImportRunStatus string

const (
	ImportRunRunning  ImportRunStatus = "running"
	ImportRunComplete ImportRunStatus = "complete"
	ImportRunFailed   ImportRunStatus = "failed"
)

// ImportRun records one invocation of the import or process command, so
// partial loads can be traced back to the batch that produced them.
type ImportRun struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Location   model.Location  `json:"location"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Status     ImportRunStatus `json:"status"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Errors     []string        `json:"errors,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// ListingFilter specifies criteria for querying stored listings.
type ListingFilter struct {
	Location model.Location `json:"location,omitempty"`
	Month    int            `json:"month,omitempty"`
	Year     int            `json:"year,omitempty"`
	Status   model.Status   `json:"status,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the extraction pipeline.
type Store interface {
	// Listings
	UpsertListing(ctx context.Context, l model.Listing) error
	UpsertListings(ctx context.Context, listings []model.Listing) (*model.ImportResult, error)
	BulkImportListings(ctx context.Context, listings []model.Listing) (int64, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error)

	// Monthly aggregates
	UpsertPriceStats(ctx context.Context, stats model.PriceStats) error
	UpsertDomStats(ctx context.Context, stats model.DomStats) error
	GetPriceStats(ctx context.Context, loc model.Location, month, year int) (*model.PriceStats, error)
	GetDomStats(ctx context.Context, loc model.Location, month, year int) (*model.DomStats, error)

	// Import runs
	CreateImportRun(ctx context.Context, source string, loc model.Location, month, year int) (*ImportRun, error)
	FinishImportRun(ctx context.Context, runID string, status ImportRunStatus, result *model.ImportResult) error

	// Dead letter queue for failed report files
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// validateKey rejects rows whose upsert key falls outside the domain
// invariants before they reach SQL.
func validateKey(loc model.Location, month, year int) error {
	if !loc.Valid() {
		return eris.Errorf("store: invalid location %q", loc)
	}
	if !model.ValidPeriod(month, year) {
		return eris.Errorf("store: invalid period %d/%d", month, year)
	}
	return nil
}
