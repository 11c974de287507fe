package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/resilience"
	"github.com/highcountry-realty/market-cli/internal/store"
)

// recordingStore captures persistence calls so command plumbing can be
// exercised without a database.
type recordingStore struct {
	upserts     [][]model.Listing
	priceStats  []model.PriceStats
	domStats    []model.DomStats
	dlq         []resilience.DLQEntry
	runStatuses []store.ImportRunStatus
}

func (s *recordingStore) UpsertListing(context.Context, model.Listing) error { return nil }

func (s *recordingStore) UpsertListings(_ context.Context, listings []model.Listing) (*model.ImportResult, error) {
	s.upserts = append(s.upserts, listings)
	return &model.ImportResult{Succeeded: len(listings)}, nil
}

func (s *recordingStore) BulkImportListings(_ context.Context, listings []model.Listing) (int64, error) {
	s.upserts = append(s.upserts, listings)
	return int64(len(listings)), nil
}

func (s *recordingStore) ListListings(context.Context, store.ListingFilter) ([]model.Listing, error) {
	return nil, nil
}

func (s *recordingStore) UpsertPriceStats(_ context.Context, stats model.PriceStats) error {
	s.priceStats = append(s.priceStats, stats)
	return nil
}

func (s *recordingStore) UpsertDomStats(_ context.Context, stats model.DomStats) error {
	s.domStats = append(s.domStats, stats)
	return nil
}

func (s *recordingStore) GetPriceStats(context.Context, model.Location, int, int) (*model.PriceStats, error) {
	return nil, nil
}

func (s *recordingStore) GetDomStats(context.Context, model.Location, int, int) (*model.DomStats, error) {
	return nil, nil
}

func (s *recordingStore) CreateImportRun(_ context.Context, source string, loc model.Location, month, year int) (*store.ImportRun, error) {
	return &store.ImportRun{ID: "run-1", Source: source, Location: loc, Month: month, Year: year, Status: store.ImportRunRunning}, nil
}

func (s *recordingStore) FinishImportRun(_ context.Context, _ string, status store.ImportRunStatus, _ *model.ImportResult) error {
	s.runStatuses = append(s.runStatuses, status)
	return nil
}

func (s *recordingStore) EnqueueDLQ(_ context.Context, entry resilience.DLQEntry) error {
	s.dlq = append(s.dlq, entry)
	return nil
}

func (s *recordingStore) DequeueDLQ(context.Context, resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	return nil, nil
}

func (s *recordingStore) IncrementDLQRetry(context.Context, string, time.Time, string) error {
	return nil
}

func (s *recordingStore) RemoveDLQ(context.Context, string) error { return nil }
func (s *recordingStore) CountDLQ(context.Context) (int, error)   { return 0, nil }
func (s *recordingStore) Ping(context.Context) error              { return nil }
func (s *recordingStore) Migrate(context.Context) error           { return nil }
func (s *recordingStore) Close() error                            { return nil }

var _ store.Store = (*recordingStore)(nil)

func processListing(mls, address string) model.Listing {
	dom := 42
	return model.Listing{
		MLSNumber: mls,
		Status:    model.StatusActive,
		Price:     425000,
		Address:   address,
		Beds:      3, Baths: 2.5, Sqft: 1650,
		DaysOnMarket: &dom,
		Location:     model.LocationAnza,
		Month:        7, Year: 2025,
	}
}

func TestPersistProcessResult_RefusesSampleData(t *testing.T) {
	st := &recordingStore{}
	result := &model.ReportResult{
		SampleData: true,
		Listings: []model.Listing{
			processListing("SW00000001", "41200 Sage Road Anza CA"),
		},
	}

	_, err := persistProcessResult(context.Background(), st, result, model.LocationAnza, 7, 2025)
	require.ErrorIs(t, err, errSampleData)

	// Nothing reached the store; a real month stays intact.
	assert.Empty(t, st.upserts)
	assert.Empty(t, st.priceStats)
	assert.Empty(t, st.domStats)
	assert.Empty(t, st.runStatuses)
}

func TestPersistProcessResult_PersistsRealBatch(t *testing.T) {
	st := &recordingStore{}
	result := &model.ReportResult{
		Listings: []model.Listing{
			processListing("SW20123456", "41200 Sage Road Anza CA"),
			processListing("SW20123457", "58790 Burnt Valley Road Anza CA"),
		},
		FilesSkipped: 1,
		Failures: []model.FileFailure{
			{Name: "bad.pdf", Err: "api down", Transient: true},
		},
	}

	upserted, err := persistProcessResult(context.Background(), st, result, model.LocationAnza, 7, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, upserted.Succeeded)
	assert.Equal(t, 1, upserted.Skipped)

	require.Len(t, st.upserts, 1)
	require.Len(t, st.priceStats, 1)
	assert.Equal(t, 425000, st.priceStats[0].MedianPrice)
	require.Len(t, st.domStats, 1)
	assert.Equal(t, 42, st.domStats[0].MedianDaysOnMkt)

	require.Len(t, st.dlq, 1)
	assert.Equal(t, "bad.pdf", st.dlq[0].FileName)
	assert.Equal(t, "transient", st.dlq[0].ErrorType)

	require.Len(t, st.runStatuses, 1)
	assert.Equal(t, store.ImportRunComplete, st.runStatuses[0])
}
