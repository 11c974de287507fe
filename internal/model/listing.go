// Package model defines the core domain types for the market report pipeline.
package model

import (
	"math"
	"strings"
	"time"
)

// Location is a canonical community identifier. All input variants
// (hyphens, underscores, mixed case) normalize to lowercase underscore form.
type Location string

// Known communities covered by the market reports.
const (
	LocationAnza           Location = "anza"
	LocationAguanga        Location = "aguanga"
	LocationIdyllwild      Location = "idyllwild"
	LocationMountainCenter Location = "mountain_center"

	// LocationInvalid is returned for input outside the closed set.
	LocationInvalid Location = "invalid"
)

// ParseLocation normalizes raw input to a canonical Location. Callers must
// check the result against LocationInvalid before any lookup or storage.
func ParseLocation(raw string) Location {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	switch Location(normalized) {
	case LocationAnza, LocationAguanga, LocationIdyllwild, LocationMountainCenter:
		return Location(normalized)
	default:
		return LocationInvalid
	}
}

// Valid reports whether l is a member of the closed location set.
func (l Location) Valid() bool {
	return l != LocationInvalid && l != ""
}

// DisplayName returns the human-readable community name.
func (l Location) DisplayName() string {
	switch l {
	case LocationAnza:
		return "Anza"
	case LocationAguanga:
		return "Aguanga"
	case LocationIdyllwild:
		return "Idyllwild"
	case LocationMountainCenter:
		return "Mountain Center"
	default:
		return string(l)
	}
}

// Status is a listing status after normalization.
type Status string

// Canonical listing statuses.
const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusClosed    Status = "closed"
	StatusSold      Status = "sold"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

// RawListing carries fields exactly as extracted from a report, before
// normalization. Values may be malformed, empty, or mistyped; no invariants
// are guaranteed.
type RawListing struct {
	MLSNumber    string `json:"mls"`
	Status       string `json:"status"`
	Price        any    `json:"price"`
	Address      string `json:"address"`
	Beds         any    `json:"beds"`
	Baths        any    `json:"baths"`
	Sqft         any    `json:"sqft"`
	YearBuilt    any    `json:"yearBuilt"`
	DaysOnMarket any    `json:"daysOnMarket"`
}

// Field length bounds applied during normalization.
const (
	MaxMLSNumberLen = 32
	MaxAddressLen   = 160

	MinPrice = 1_000
	MaxPrice = 100_000_000
)

// Listing is the validated unit of record. Constructed by the normalizer
// from a RawListing; immutable thereafter.
type Listing struct {
	MLSNumber    string   `json:"mlsNumber"`
	Status       Status   `json:"status"`
	Price        int      `json:"price"`
	Address      string   `json:"address"`
	Beds         int      `json:"beds"`
	Baths        float64  `json:"baths"`
	Sqft         int      `json:"sqft"`
	YearBuilt    *int     `json:"yearBuilt"`
	DaysOnMarket *int     `json:"daysOnMarket"`
	PricePerSqft *int     `json:"pricePerSqft"`
	Location     Location `json:"location"`
	Month        int      `json:"month"`
	Year         int      `json:"year"`
}

// DerivePricePerSqft computes round(price/sqft) when both are positive.
// Returns nil otherwise.
func DerivePricePerSqft(price, sqft int) *int {
	if price <= 0 || sqft <= 0 {
		return nil
	}
	v := int(math.Round(float64(price) / float64(sqft)))
	return &v
}

// Aggregate period bounds; values outside these are rejected before upsert.
const (
	MinAggregateYear = 2020
	MaxAggregateYear = 2050
)

// ValidPeriod reports whether (month, year) is inside the storable range.
func ValidPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= MinAggregateYear && year <= MaxAggregateYear
}

// PriceStats is the monthly price aggregate for one (location, month, year).
type PriceStats struct {
	Location        Location `json:"location"`
	Month           int      `json:"month"`
	Year            int      `json:"year"`
	PricePerSqft    int      `json:"pricePerSqft"`
	AveragePrice    int      `json:"averagePrice"`
	MedianPrice     int      `json:"medianPrice"`
	TotalSales      int      `json:"totalSales"`
	MedianDaysOnMkt int      `json:"medianDaysOnMarket"`
}

// DomStats is the monthly days-on-market aggregate for one
// (location, month, year).
type DomStats struct {
	Location         Location `json:"location"`
	Month            int      `json:"month"`
	Year             int      `json:"year"`
	AverageDaysOnMkt int      `json:"averageDaysOnMarket"`
	MedianDaysOnMkt  int      `json:"medianDaysOnMarket"`
}

// CurrentYear is indirected for tests that exercise the year-built bound.
var CurrentYear = func() int { return time.Now().Year() }
