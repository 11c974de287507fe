package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/highcountry-realty/market-cli/internal/model"
)

func intPtr(v int) *int { return &v }

func TestCompute(t *testing.T) {
	t.Parallel()

	listings := []model.Listing{
		{Price: 400000, Sqft: 2000, DaysOnMarket: intPtr(30)},
		{Price: 500000, Sqft: 2000, DaysOnMarket: intPtr(60)},
		{Price: 600000, Sqft: 2000, DaysOnMarket: intPtr(90)},
	}

	price, dom := Compute(listings, model.LocationAnza, 6, 2025)

	assert.Equal(t, model.LocationAnza, price.Location)
	assert.Equal(t, 6, price.Month)
	assert.Equal(t, 2025, price.Year)
	assert.Equal(t, 500000, price.MedianPrice)
	assert.Equal(t, 500000, price.AveragePrice)
	assert.Equal(t, 250, price.PricePerSqft) // per-sqft: 200, 250, 300
	assert.Equal(t, 3, price.TotalSales)
	assert.Equal(t, 60, price.MedianDaysOnMkt)

	assert.Equal(t, 60, dom.AverageDaysOnMkt)
	assert.Equal(t, 60, dom.MedianDaysOnMkt)
}

func TestCompute_EvenMedian(t *testing.T) {
	t.Parallel()

	listings := []model.Listing{
		{Price: 100000, Sqft: 1000},
		{Price: 200000, Sqft: 1000},
	}

	price, _ := Compute(listings, model.LocationAguanga, 1, 2024)
	assert.Equal(t, 150000, price.MedianPrice)
	assert.Equal(t, 150000, price.AveragePrice)
	assert.Equal(t, 2, price.TotalSales)
}

func TestCompute_ExcludesIncompletePriceRows(t *testing.T) {
	t.Parallel()

	listings := []model.Listing{
		{Price: 400000, Sqft: 1600, DaysOnMarket: intPtr(20)},
		// No sqft: excluded from price stats, still counted for DOM.
		{Price: 500000, Sqft: 0, DaysOnMarket: intPtr(40)},
		// No price either way.
		{Price: 0, Sqft: 1200, DaysOnMarket: intPtr(60)},
	}

	price, dom := Compute(listings, model.LocationIdyllwild, 2, 2025)
	assert.Equal(t, 1, price.TotalSales)
	assert.Equal(t, 400000, price.MedianPrice)
	assert.Equal(t, 250, price.PricePerSqft)

	// All three DOM values participate.
	assert.Equal(t, 40, dom.AverageDaysOnMkt)
	assert.Equal(t, 40, dom.MedianDaysOnMkt)
}

func TestCompute_IgnoresNonPositiveDOM(t *testing.T) {
	t.Parallel()

	listings := []model.Listing{
		{Price: 400000, Sqft: 1600, DaysOnMarket: intPtr(0)},
		{Price: 500000, Sqft: 1600, DaysOnMarket: nil},
		{Price: 600000, Sqft: 1600, DaysOnMarket: intPtr(50)},
	}

	_, dom := Compute(listings, model.LocationAnza, 6, 2025)
	assert.Equal(t, 50, dom.AverageDaysOnMkt)
	assert.Equal(t, 50, dom.MedianDaysOnMkt)
}

func TestCompute_Empty(t *testing.T) {
	t.Parallel()

	price, dom := Compute(nil, model.LocationAnza, 6, 2025)
	assert.Equal(t, 0, price.MedianPrice)
	assert.Equal(t, 0, price.AveragePrice)
	assert.Equal(t, 0, price.TotalSales)
	assert.Equal(t, 0, dom.AverageDaysOnMkt)
	assert.Equal(t, model.LocationAnza, price.Location)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, median(nil))
	assert.Equal(t, 7, median([]int{7}))
	assert.Equal(t, 200, median([]int{300, 100, 200}))
	assert.Equal(t, 150, median([]int{200, 100}))
	assert.Equal(t, 2, median([]int{1, 2, 2, 3}))
}

func TestMean(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, mean(nil))
	assert.Equal(t, 2, mean([]int{1, 2}))
	assert.Equal(t, 1, mean([]int{1, 1, 2}))
}
