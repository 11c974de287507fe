package report

import (
	"fmt"

	"github.com/highcountry-realty/market-cli/internal/model"
)

// sampleRows is the fixed placeholder dataset used when nothing could be
// extracted from a report. It keeps the admin UI rendering something
// well-formed; the SampleData marker tells real consumers to ignore it.
var sampleRows = []struct {
	mls    string
	status string
	price  int
	street string
	beds   int
	baths  float64
	sqft   int
	year   int
	dom    int
}{
	{"SW00000001", "active", 425000, "41200 Sage Road", 3, 2.0, 1650, 1998, 42},
	{"SW00000002", "active", 519000, "58790 Burnt Valley Road", 4, 2.5, 2100, 2004, 35},
	{"SW00000003", "pending", 389000, "54321 Pine Crest Avenue", 2, 1.0, 1100, 1976, 58},
	{"SW00000004", "closed", 610000, "25480 Fern Valley Road", 3, 2.0, 1850, 1989, 67},
	{"SW00000005", "closed", 472500, "61020 Devils Ladder Road", 3, 2.0, 1540, 1995, 71},
}

// sampleData builds the degenerate-input fallback for a community.
func sampleData(loc model.Location) *PageData {
	data := &PageData{SampleData: true}
	for _, r := range sampleRows {
		data.Listings = append(data.Listings, model.RawListing{
			MLSNumber:    r.mls,
			Status:       r.status,
			Price:        r.price,
			Address:      fmt.Sprintf("%s, %s CA", r.street, loc.DisplayName()),
			Beds:         r.beds,
			Baths:        r.baths,
			Sqft:         r.sqft,
			YearBuilt:    r.year,
			DaysOnMarket: r.dom,
		})
		switch r.status {
		case "active":
			data.StatusCounts.Active++
		case "pending":
			data.StatusCounts.Pending++
		case "closed":
			data.StatusCounts.Closed++
		default:
			data.StatusCounts.Other++
		}
	}
	return data
}
