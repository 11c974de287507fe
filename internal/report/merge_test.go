package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highcountry-realty/market-cli/internal/model"
)

func TestMergeExtraction(t *testing.T) {
	t.Parallel()

	acc := model.RawExtraction{
		StatusCounts:     model.StatusCounts{Active: 10, Closed: 5},
		TotalListings:    15,
		MedianPrice:      400000,
		AverageDaysOnMkt: 50,
		Listings:         []model.RawListing{{MLSNumber: "SW1"}},
		PriceRanges:      []model.PriceRange{{Label: "$300K-$400K", Count: 3}},
	}
	next := model.RawExtraction{
		StatusCounts:     model.StatusCounts{Active: 2, Pending: 4},
		TotalListings:    6,
		MedianPrice:      425000,
		UnitSales:        12,
		Listings:         []model.RawListing{{MLSNumber: "SW2"}, {MLSNumber: "SW3"}},
		MarketTimeRanges: []model.TimeRange{{Label: "0-30", Count: 7}},
	}

	merged := mergeExtraction(acc, next)

	// Counts sum.
	assert.Equal(t, model.StatusCounts{Active: 12, Pending: 4, Closed: 5}, merged.StatusCounts)
	assert.Equal(t, 21, merged.TotalListings)

	// Listings concatenate.
	require.Len(t, merged.Listings, 3)
	assert.Equal(t, "SW1", merged.Listings[0].MLSNumber)
	assert.Equal(t, "SW3", merged.Listings[2].MLSNumber)

	// Scalars are last-value-wins when the new value is set.
	assert.Equal(t, 425000, merged.MedianPrice)
	assert.Equal(t, 12, merged.UnitSales)
	// Unset values in next keep the accumulator's.
	assert.Equal(t, 50, merged.AverageDaysOnMkt)

	// Bucket rows replace wholesale when present.
	assert.Equal(t, []model.PriceRange{{Label: "$300K-$400K", Count: 3}}, merged.PriceRanges)
	assert.Equal(t, []model.TimeRange{{Label: "0-30", Count: 7}}, merged.MarketTimeRanges)
}

func TestMergeExtraction_ZeroAccumulator(t *testing.T) {
	t.Parallel()

	next := model.RawExtraction{
		StatusCounts: model.StatusCounts{Active: 3},
		MedianPrice:  500000,
		Listings:     []model.RawListing{{MLSNumber: "SW1"}},
	}
	merged := mergeExtraction(model.RawExtraction{}, next)
	assert.Equal(t, next.StatusCounts, merged.StatusCounts)
	assert.Equal(t, 500000, merged.MedianPrice)
	assert.Len(t, merged.Listings, 1)
}

func TestPageToExtraction(t *testing.T) {
	t.Parallel()

	page := &PageData{
		Listings:         []model.RawListing{{MLSNumber: "SW1"}, {MLSNumber: "SW2"}},
		StatusCounts:     model.StatusCounts{Active: 2},
		MedianPrice:      425000,
		AverageDaysOnMkt: 48,
		UnitSales:        12,
		Inventory:        30,
		MarketTimeRanges: []model.TimeRange{{Label: "0-30", Count: 5}},
	}

	ext := pageToExtraction(page)
	assert.Equal(t, page.StatusCounts, ext.StatusCounts)
	assert.Equal(t, 425000, ext.MedianPrice)
	assert.Equal(t, 48, ext.AverageDaysOnMkt)
	assert.Equal(t, 12, ext.UnitSales)
	assert.Equal(t, 30, ext.Inventory)
	assert.Equal(t, 2, ext.TotalListings)
	assert.Len(t, ext.Listings, 2)
	assert.Equal(t, page.MarketTimeRanges, ext.MarketTimeRanges)
}

func TestToRawExtraction(t *testing.T) {
	t.Parallel()

	wire := &rawExtractionJSON{}
	wire.StatusCounts.Active = 3
	wire.MedianPrice = 425000.0
	wire.AverageDaysOnMarket = 47.9
	wire.Listings = []rawListingJSON{
		{MLS: float64(20123456), Status: "active", Price: float64(425000), Address: "41200 Sage Road"},
		{MLS: "SW20123457", Status: "pending", Price: "$519,000", Address: "58790 Burnt Valley Road"},
	}
	wire.MarketTimeRanges = []struct {
		Label string  `json:"label"`
		Count float64 `json:"count"`
	}{{Label: "0-30", Count: 14}}

	got := wire.toRawExtraction()
	assert.Equal(t, 3, got.StatusCounts.Active)
	assert.Equal(t, 425000, got.MedianPrice)
	assert.Equal(t, 47, got.AverageDaysOnMkt)

	require.Len(t, got.Listings, 2)
	// Numeric MLS identifiers restringify without a float suffix.
	assert.Equal(t, "20123456", got.Listings[0].MLSNumber)
	assert.Equal(t, "SW20123457", got.Listings[1].MLSNumber)

	require.Len(t, got.MarketTimeRanges, 1)
	assert.Equal(t, model.TimeRange{Label: "0-30", Count: 14}, got.MarketTimeRanges[0])
}

func TestQuickAnalysis(t *testing.T) {
	t.Parallel()

	acc := model.RawExtraction{
		StatusCounts: model.StatusCounts{Active: 50, Pending: 20, Closed: 30},
		MedianPrice:  425000,
	}
	got := quickAnalysis(model.LocationAnza, acc, 120)
	assert.Equal(t, "Anza market: 120 listings (50.0% active), median price $425,000", got)
}

func TestQuickAnalysis_NoStatusCounts(t *testing.T) {
	t.Parallel()

	got := quickAnalysis(model.LocationIdyllwild, model.RawExtraction{MedianPrice: 380000}, 4)
	assert.Equal(t, "Idyllwild market: 4 listings (0.0% active), median price $380,000", got)
}
