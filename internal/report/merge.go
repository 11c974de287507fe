package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/normalize"
)

// rawListingJSON tolerates the mixed string/number field types the
// extraction call produces.
type rawListingJSON struct {
	MLS          any    `json:"mls"`
	Status       string `json:"status"`
	Price        any    `json:"price"`
	Address      string `json:"address"`
	Beds         any    `json:"beds"`
	Baths        any    `json:"baths"`
	Sqft         any    `json:"sqft"`
	YearBuilt    any    `json:"yearBuilt"`
	DaysOnMarket any    `json:"daysOnMarket"`
}

// rawExtractionJSON is the wire shape of a structured-extraction response.
type rawExtractionJSON struct {
	StatusCounts struct {
		Active  int `json:"active"`
		Pending int `json:"pending"`
		Closed  int `json:"closed"`
		Other   int `json:"other"`
	} `json:"statusCounts"`
	TotalListings       int              `json:"totalListings"`
	MedianPrice         float64          `json:"medianPrice"`
	AverageDaysOnMarket float64          `json:"averageDaysOnMarket"`
	UnitSales           int              `json:"unitSales"`
	Inventory           int              `json:"inventory"`
	Listings            []rawListingJSON `json:"listings"`
	PriceRanges         []struct {
		Label string  `json:"label"`
		Count float64 `json:"count"`
	} `json:"priceRanges"`
	MarketTimeRanges []struct {
		Label string  `json:"label"`
		Count float64 `json:"count"`
	} `json:"marketTimeRanges"`
}

// toRawExtraction converts the wire shape into the domain type.
func (r *rawExtractionJSON) toRawExtraction() model.RawExtraction {
	out := model.RawExtraction{
		StatusCounts: model.StatusCounts{
			Active:  r.StatusCounts.Active,
			Pending: r.StatusCounts.Pending,
			Closed:  r.StatusCounts.Closed,
			Other:   r.StatusCounts.Other,
		},
		TotalListings:    r.TotalListings,
		MedianPrice:      int(r.MedianPrice),
		AverageDaysOnMkt: int(r.AverageDaysOnMarket),
		UnitSales:        r.UnitSales,
		Inventory:        r.Inventory,
	}
	for _, l := range r.Listings {
		out.Listings = append(out.Listings, model.RawListing{
			MLSNumber:    normalize.Stringify(l.MLS),
			Status:       l.Status,
			Price:        l.Price,
			Address:      l.Address,
			Beds:         l.Beds,
			Baths:        l.Baths,
			Sqft:         l.Sqft,
			YearBuilt:    l.YearBuilt,
			DaysOnMarket: l.DaysOnMarket,
		})
	}
	for _, p := range r.PriceRanges {
		out.PriceRanges = append(out.PriceRanges, model.PriceRange{Label: p.Label, Count: int(p.Count)})
	}
	for _, t := range r.MarketTimeRanges {
		out.MarketTimeRanges = append(out.MarketTimeRanges, model.TimeRange{Label: t.Label, Count: int(t.Count)})
	}
	return out
}

// mergeExtraction folds one file's extraction into the batch accumulator:
// status counts sum, listings concatenate (dedup happens at the persistence
// upsert key, not here), scalar summary fields and bucket rows are
// last-value-wins.
func mergeExtraction(acc model.RawExtraction, next model.RawExtraction) model.RawExtraction {
	acc.StatusCounts.Add(next.StatusCounts)
	acc.Listings = append(acc.Listings, next.Listings...)
	acc.TotalListings += next.TotalListings

	if next.MedianPrice > 0 {
		acc.MedianPrice = next.MedianPrice
	}
	if next.AverageDaysOnMkt > 0 {
		acc.AverageDaysOnMkt = next.AverageDaysOnMkt
	}
	if next.UnitSales > 0 {
		acc.UnitSales = next.UnitSales
	}
	if next.Inventory > 0 {
		acc.Inventory = next.Inventory
	}
	if len(next.PriceRanges) > 0 {
		acc.PriceRanges = next.PriceRanges
	}
	if len(next.MarketTimeRanges) > 0 {
		acc.MarketTimeRanges = next.MarketTimeRanges
	}
	return acc
}

// pageToExtraction lifts legacy-parser page data into the extraction shape
// so both paths share one merge policy.
func pageToExtraction(page *PageData) model.RawExtraction {
	return model.RawExtraction{
		StatusCounts:     page.StatusCounts,
		MedianPrice:      page.MedianPrice,
		AverageDaysOnMkt: page.AverageDaysOnMkt,
		UnitSales:        page.UnitSales,
		Inventory:        page.Inventory,
		Listings:         page.Listings,
		MarketTimeRanges: page.MarketTimeRanges,
		TotalListings:    len(page.Listings),
	}
}

var summaryPrinter = message.NewPrinter(language.AmericanEnglish)

// quickAnalysis renders the human-readable batch summary from the merged
// extraction.
func quickAnalysis(loc model.Location, acc model.RawExtraction, listingCount int) string {
	total := acc.StatusCounts.Total()
	if total == 0 {
		total = listingCount
	}
	activePct := 0.0
	if total > 0 {
		activePct = float64(acc.StatusCounts.Active) / float64(total) * 100
	}
	return summaryPrinter.Sprintf("%s market: %d listings (%.1f%% active), median price $%d",
		loc.DisplayName(), listingCount, activePct, acc.MedianPrice)
}
