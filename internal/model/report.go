package model

// StatusCounts tallies listings by coarse status category as reported in a
// market summary section. Counts are summed when merging multi-file batches.
type StatusCounts struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Closed  int `json:"closed"`
	Other   int `json:"other"`
}

// Total returns the sum across all categories.
func (s StatusCounts) Total() int {
	return s.Active + s.Pending + s.Closed + s.Other
}

// Add accumulates counts from another StatusCounts.
func (s *StatusCounts) Add(o StatusCounts) {
	s.Active += o.Active
	s.Pending += o.Pending
	s.Closed += o.Closed
	s.Other += o.Other
}

// PriceRange is a labeled price bucket ("$500K-$750K" → count).
type PriceRange struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimeRange is a market-time bucket ("0-30 days" → number of listings).
type TimeRange struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RawExtraction is the per-document result of the structured-extraction
// call, before normalization. Merged into a ReportResult accumulator and
// discarded.
type RawExtraction struct {
	StatusCounts     StatusCounts `json:"statusCounts"`
	TotalListings    int          `json:"totalListings"`
	MedianPrice      int          `json:"medianPrice"`
	AverageDaysOnMkt int          `json:"averageDaysOnMarket"`
	UnitSales        int          `json:"unitSales"`
	Inventory        int          `json:"inventory"`
	Listings         []RawListing `json:"listings"`
	PriceRanges      []PriceRange `json:"priceRanges"`
	MarketTimeRanges []TimeRange  `json:"marketTimeRanges"`
}

// ReportResult is the merged outcome of processing one batch of report
// files for a single (location, month, year).
type ReportResult struct {
	Listings         []Listing    `json:"listings"`
	Summary          string       `json:"summary"`
	StatusCounts     StatusCounts `json:"statusSummary"`
	PriceRanges      []PriceRange `json:"priceRanges"`
	MarketTimeRanges []TimeRange  `json:"marketTimeRanges"`
	MedianPrice      int          `json:"medianPrice"`
	AverageDaysOnMkt int          `json:"averageDaysOnMarket"`
	UnitSales        int          `json:"unitSales"`
	Inventory        int          `json:"inventory"`

	// SampleData marks results synthesized from the fallback dataset when
	// nothing could be extracted. Consumers doing real analysis must check it.
	SampleData bool `json:"sampleData"`

	// FilesProcessed / FilesSkipped count per-file outcomes for the batch.
	FilesProcessed int           `json:"filesProcessed"`
	FilesSkipped   int           `json:"filesSkipped"`
	Errors         []string      `json:"errors,omitempty"`
	Failures       []FileFailure `json:"failures,omitempty"`
}

// FileFailure records one skipped report file with enough context to
// requeue it.
type FileFailure struct {
	Name      string `json:"name"`
	Err       string `json:"error"`
	Transient bool   `json:"transient"`
}

// ImportResult reports per-row persistence outcomes for a batch of
// listings. Partial failure never aborts the batch.
type ImportResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}
