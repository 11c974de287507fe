// Package ingest loads listings from MLS CSV and XLSX exports.
package ingest

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/fetcher"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/normalize"
)

// Canonical field names assigned to mapped columns.
const (
	fieldMLS          = "mls"
	fieldStatus       = "status"
	fieldPrice        = "price"
	fieldAddress      = "address"
	fieldBeds         = "beds"
	fieldBaths        = "baths"
	fieldSqft         = "sqft"
	fieldYearBuilt    = "yearBuilt"
	fieldDaysOnMarket = "daysOnMarket"
)

// columnAliases maps normalized export headers to canonical fields. MLS
// exports vary by board and vintage; unknown columns are ignored.
var columnAliases = map[string]string{
	"list number":      fieldMLS,
	"mls":              fieldMLS,
	"mls number":       fieldMLS,
	"mls num":          fieldMLS,
	"listing id":       fieldMLS,
	"status":           fieldStatus,
	"listing status":   fieldStatus,
	"list price":       fieldPrice,
	"price":            fieldPrice,
	"sold price":       fieldPrice,
	"current price":    fieldPrice,
	"address":          fieldAddress,
	"street address":   fieldAddress,
	"property address": fieldAddress,
	"full address":     fieldAddress,
	"total bedrooms":   fieldBeds,
	"bedrooms":         fieldBeds,
	"beds":             fieldBeds,
	"br":               fieldBeds,
	"total baths":      fieldBaths,
	"bathrooms":        fieldBaths,
	"baths":            fieldBaths,
	"ba":               fieldBaths,
	"square feet":      fieldSqft,
	"approx sqft":      fieldSqft,
	"sqft":             fieldSqft,
	"living area":      fieldSqft,
	"year built":       fieldYearBuilt,
	"yr built":         fieldYearBuilt,
	"days on market":   fieldDaysOnMarket,
	"dom":              fieldDaysOnMarket,
	"cdom":             fieldDaysOnMarket,
	"adom":             fieldDaysOnMarket,
}

var headerPunctRe = regexp.MustCompile(`[^a-z0-9 ]`)

// normalizeHeader lowercases a header cell and strips punctuation so
// "List Price ($)" and "list price" map to the same column.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerPunctRe.ReplaceAllString(h, " ")
	return strings.Join(strings.Fields(h), " ")
}

// columnMap maps column index to canonical field name.
type columnMap map[int]string

// mapHeader resolves a header row to a columnMap. At minimum the export
// must carry address and price columns to be usable.
func mapHeader(header []string) (columnMap, error) {
	cm := columnMap{}
	seen := map[string]bool{}
	for i, cell := range header {
		field, ok := columnAliases[normalizeHeader(cell)]
		if !ok || seen[field] {
			continue
		}
		cm[i] = field
		seen[field] = true
	}
	if !seen[fieldAddress] || !seen[fieldPrice] {
		return nil, eris.Errorf("ingest: unusable header, missing address or price column: %v", header)
	}
	return cm, nil
}

// rowToRaw lifts one data row into a RawListing using the column map.
func rowToRaw(row []string, cm columnMap) model.RawListing {
	var raw model.RawListing
	for i, field := range cm {
		if i >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[i])
		switch field {
		case fieldMLS:
			raw.MLSNumber = val
		case fieldStatus:
			raw.Status = val
		case fieldPrice:
			raw.Price = val
		case fieldAddress:
			raw.Address = val
		case fieldBeds:
			raw.Beds = val
		case fieldBaths:
			raw.Baths = val
		case fieldSqft:
			raw.Sqft = val
		case fieldYearBuilt:
			raw.YearBuilt = val
		case fieldDaysOnMarket:
			raw.DaysOnMarket = val
		}
	}
	return raw
}

// FromCSV reads an MLS CSV export and returns normalized listings tagged
// with the given location and period.
func FromCSV(ctx context.Context, path string, loc model.Location, month, year int) ([]model.Listing, error) {
	if !loc.Valid() {
		return nil, eris.Errorf("ingest: invalid location %q", loc)
	}
	if !model.ValidPeriod(month, year) {
		return nil, eris.Errorf("ingest: invalid period %d/%d", month, year)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close()

	// An early return (bad header) must release the streaming goroutine,
	// which otherwise blocks on the row channel once its buffer fills.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		TrimSpace:  true,
		LazyQuotes: true,
	})

	var cm columnMap
	var raws []model.RawListing
	for row := range rowCh {
		if cm == nil {
			header, ok := <-headerCh
			if !ok {
				return nil, eris.New("ingest: csv has no header row")
			}
			cm, err = mapHeader(header)
			if err != nil {
				return nil, err
			}
		}
		raws = append(raws, rowToRaw(row, cm))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if cm == nil {
		// Header only, or empty file.
		select {
		case header := <-headerCh:
			if _, err := mapHeader(header); err != nil {
				return nil, err
			}
		default:
		}
		return nil, nil
	}

	listings := normalize.BuildListings(raws, loc, month, year)
	zap.L().Info("ingest: csv parsed",
		zap.String("path", path),
		zap.Int("rows", len(raws)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}

// FromXLSX reads an MLS XLSX export and returns normalized listings tagged
// with the given location and period. Only the first sheet is read.
func FromXLSX(ctx context.Context, path string, loc model.Location, month, year int) ([]model.Listing, error) {
	if !loc.Valid() {
		return nil, eris.Errorf("ingest: invalid location %q", loc)
	}
	if !model.ValidPeriod(month, year) {
		return nil, eris.Errorf("ingest: invalid period %d/%d", month, year)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: xlsx")
	}

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("ingest: xlsx has no rows")
	}

	cm, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	raws := make([]model.RawListing, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raws = append(raws, rowToRaw(row, cm))
	}

	listings := normalize.BuildListings(raws, loc, month, year)
	zap.L().Info("ingest: xlsx parsed",
		zap.String("path", path),
		zap.Int("rows", len(raws)),
		zap.Int("listings", len(listings)),
	)
	return listings, nil
}
