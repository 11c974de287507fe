// Package aggregate computes monthly summary statistics from normalized
// listings. All computation is in-memory and synchronous; empty input yields
// an all-zero aggregate, never an error. Callers must treat all-zero as
// "no data", not as a valid statistic of zero.
package aggregate

import (
	"math"
	"sort"

	"github.com/highcountry-realty/market-cli/internal/model"
)

// Compute derives the price and days-on-market aggregates for one
// (location, month, year) from its normalized listings.
//
// Price statistics use only listings with price > 0 and sqft > 0.
// Days-on-market statistics use every listing carrying a positive value,
// including ones excluded from the price set.
func Compute(listings []model.Listing, loc model.Location, month, year int) (model.PriceStats, model.DomStats) {
	var prices []int
	var perSqft []int
	var dom []int

	for _, l := range listings {
		if l.Price > 0 && l.Sqft > 0 {
			prices = append(prices, l.Price)
			if pps := int(math.Round(float64(l.Price) / float64(l.Sqft))); pps > 0 {
				perSqft = append(perSqft, pps)
			}
		}
		if l.DaysOnMarket != nil && *l.DaysOnMarket > 0 {
			dom = append(dom, *l.DaysOnMarket)
		}
	}

	price := model.PriceStats{
		Location:        loc,
		Month:           month,
		Year:            year,
		PricePerSqft:    median(perSqft),
		AveragePrice:    mean(prices),
		MedianPrice:     median(prices),
		TotalSales:      len(prices),
		MedianDaysOnMkt: median(dom),
	}

	days := model.DomStats{
		Location:         loc,
		Month:            month,
		Year:             year,
		AverageDaysOnMkt: mean(dom),
		MedianDaysOnMkt:  median(dom),
	}

	return price, days
}

// mean returns the arithmetic mean rounded to the nearest integer; 0 on
// empty input.
func mean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}

// median returns the standard median: the middle element for odd counts,
// the rounded average of the two middle elements for even counts; 0 on
// empty input.
func median(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return int(math.Round(float64(sorted[mid-1]+sorted[mid]) / 2))
}
