// Package report turns OCR-derived market report text into structured
// listing data, via either direct page parsing or the hybrid
// conversion-plus-extraction pipeline.
package report

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/normalize"
)

// PageData holds everything extracted from a single report page: listing
// rows plus the aggregate text fragments that appear in summary sections.
type PageData struct {
	Listings         []model.RawListing
	StatusCounts     model.StatusCounts
	MedianPrice      int
	AverageDaysOnMkt int
	UnitSales        int
	Inventory        int
	MarketTimeRanges []model.TimeRange
	SampleData       bool
}

// empty reports whether nothing usable was extracted.
func (p *PageData) empty() bool {
	return len(p.Listings) == 0 && p.StatusCounts.Total() == 0
}

// pageStrategy is one parsing dialect. Strategies are tried in order; the
// first that claims the content wins.
type pageStrategy struct {
	name    string
	applies func(content string) bool
	parse   func(content string) *PageData
}

var strategies = []pageStrategy{
	{name: "structured_table", applies: looksLikeJSONTable, parse: parseStructuredTable},
	{name: "markdown", applies: looksLikeMarkdown, parse: parseMarkdown},
	{name: "loose_text", applies: func(string) bool { return true }, parse: parseLooseText},
}

// ParsePage extracts listings and summary fragments from one page of
// report text. If no strategy extracts anything, a fixed sample dataset
// tagged with the community name is returned so downstream consumers always
// receive a well-formed result; the SampleData marker distinguishes it.
func ParsePage(content string, loc model.Location) *PageData {
	for _, s := range strategies {
		if !s.applies(content) {
			continue
		}
		data := s.parse(content)
		if data != nil && !data.empty() {
			zap.L().Debug("report: page parsed",
				zap.String("strategy", s.name),
				zap.Int("listings", len(data.Listings)),
			)
			return data
		}
	}

	zap.L().Warn("report: no data extracted, using sample dataset",
		zap.String("location", string(loc)),
	)
	return sampleData(loc)
}

// --- strategy: structured JSON table ---

// jsonPage is the structured page shape produced by some conversion
// services: a table of pre-split cell rows with a leading header row.
type jsonPage struct {
	Page  int `json:"page"`
	Table struct {
		Rows [][]string `json:"rows"`
	} `json:"table"`
}

func looksLikeJSONTable(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	return json.Valid([]byte(trimmed))
}

// Fixed column positions in structured table rows.
const (
	colMLS = iota
	colStatus
	colPrice
	colAddress
	colBeds
	colBaths
	colSqft
	colYearBuilt
	colDaysOnMarket
	tableWidth = colDaysOnMarket + 1
)

func parseStructuredTable(content string) *PageData {
	trimmed := strings.TrimSpace(content)

	var pages []jsonPage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &pages); err != nil {
			return nil
		}
	} else {
		var page jsonPage
		if err := json.Unmarshal([]byte(trimmed), &page); err != nil {
			return nil
		}
		pages = []jsonPage{page}
	}

	data := &PageData{}
	for _, page := range pages {
		for i, row := range page.Table.Rows {
			if i == 0 {
				// Header row.
				continue
			}
			if len(row) < colAddress+1 {
				continue
			}
			raw := model.RawListing{
				MLSNumber: cell(row, colMLS),
				Status:    cell(row, colStatus),
				Price:     cell(row, colPrice),
				Address:   cell(row, colAddress),
				Beds:      cell(row, colBeds),
				Baths:     cell(row, colBaths),
				Sqft:      cell(row, colSqft),
				YearBuilt: cell(row, colYearBuilt),
			}
			if dom := cell(row, colDaysOnMarket); dom != "" {
				raw.DaysOnMarket = dom
			}
			data.Listings = append(data.Listings, raw)
		}
	}
	return data
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// --- strategy: markdown ---

func looksLikeMarkdown(content string) bool {
	if strings.Contains(content, "|") {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return true
		}
	}
	return false
}

// statusLineRe matches labeled counts ("Active: 111"). The trailing capture
// lets the caller reject percentage-suffixed matches ("Active: 81.62%"),
// which appear in the same summaries.
var statusLineRe = regexp.MustCompile(`(?i)(Active|Pending|Closed|Sold|Other)\s*:\s*([\d.]+)(%?)`)

// medianPriceCellRe matches a "Median" table row's dollar cell.
var medianPriceCellRe = regexp.MustCompile(`(?i)\|\s*Median[^|]*\|[^|]*?\$?\s*([\d,]+)`)

func parseMarkdown(content string) *PageData {
	data := &PageData{}

	// Status counts come only from the "Numerical breakdown" section;
	// the same labels appear elsewhere with percentages.
	section := extractSection(content, "numerical breakdown")
	for _, m := range statusLineRe.FindAllStringSubmatch(section, -1) {
		if m[3] == "%" || strings.Contains(m[2], ".") {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "active":
			data.StatusCounts.Active = n
		case "pending":
			data.StatusCounts.Pending = n
		case "closed", "sold":
			data.StatusCounts.Closed += n
		case "other":
			data.StatusCounts.Other = n
		}
	}

	if m := medianPriceCellRe.FindStringSubmatch(content); m != nil {
		data.MedianPrice = normalize.ParseIntSafe(m[1])
	}

	data.AverageDaysOnMkt = parseDOMColumn(content)
	data.MarketTimeRanges = parseTimeRangeRow(content)

	// Markdown reports may also embed listing tables.
	data.Listings = parsePipeTableListings(content)

	return data
}

// extractSection returns the content between a heading containing marker
// (case-insensitive) and the next heading, or "" when absent.
func extractSection(content, marker string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	in := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isHeading := strings.HasPrefix(trimmed, "#") ||
			(strings.HasSuffix(trimmed, ":") && !strings.ContainsAny(trimmed, "|$"))
		if in && strings.HasPrefix(trimmed, "#") {
			break
		}
		if !in && isHeading && strings.Contains(strings.ToLower(trimmed), marker) {
			in = true
			continue
		}
		if in {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseDOMColumn finds the days-on-market column in a summary pipe table
// and returns the value from the Average (preferred) or Median row.
func parseDOMColumn(content string) int {
	lines := strings.Split(content, "\n")

	domCol := -1
	var average, medianVal int
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			continue
		}
		cells := splitPipeRow(line)
		if len(cells) == 0 {
			continue
		}

		if domCol < 0 {
			for i, c := range cells {
				lc := strings.ToLower(c)
				if lc == "dom" || strings.Contains(lc, "days on market") {
					domCol = i
					break
				}
			}
			continue
		}

		label := strings.ToLower(cells[0])
		if domCol < len(cells) {
			switch {
			case strings.HasPrefix(label, "average"):
				average = normalize.ParseIntSafe(cells[domCol])
			case strings.HasPrefix(label, "median"):
				medianVal = normalize.ParseIntSafe(cells[domCol])
			}
		}
	}

	if average > 0 {
		return average
	}
	return medianVal
}

// parseTimeRangeRow extracts the 5-bucket "Number of Listings" market-time
// row, pairing counts with the bucket labels from the preceding header row.
func parseTimeRangeRow(content string) []model.TimeRange {
	lines := strings.Split(content, "\n")

	var header []string
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			continue
		}
		cells := splitPipeRow(line)
		if len(cells) == 0 {
			continue
		}

		label := strings.ToLower(cells[0])
		if strings.Contains(label, "days") || strings.Contains(label, "time") ||
			strings.Contains(label, "range") {
			header = cells
			continue
		}

		if strings.Contains(label, "number of listings") && len(cells) >= 6 {
			var ranges []model.TimeRange
			for i := 1; i < len(cells) && i <= 5; i++ {
				name := "bucket " + strconv.Itoa(i)
				if header != nil && i < len(header) {
					name = header[i]
				}
				ranges = append(ranges, model.TimeRange{
					Label: name,
					Count: normalize.ParseIntSafe(cells[i]),
				})
			}
			return ranges
		}
	}
	return nil
}

// parsePipeTableListings scans markdown pipe tables for listing rows (an
// MLS-number-shaped first or second cell) and maps them positionally.
func parsePipeTableListings(content string) []model.RawListing {
	var listings []model.RawListing
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		cells := splitPipeRow(line)
		if len(cells) < 4 {
			continue
		}
		if !mlsNumberRe.MatchString(cells[0]) {
			continue
		}
		raw := model.RawListing{
			MLSNumber: cells[0],
			Status:    cell(cells, 1),
			Price:     cell(cells, 2),
			Address:   cell(cells, 3),
			Beds:      cell(cells, 4),
			Baths:     cell(cells, 5),
			Sqft:      cell(cells, 6),
			YearBuilt: cell(cells, 7),
		}
		if dom := cell(cells, 8); dom != "" {
			raw.DaysOnMarket = dom
		}
		listings = append(listings, raw)
	}
	return listings
}

func splitPipeRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "|")
	cells := make([]string, 0, len(parts))
	allSep := true
	for _, p := range parts {
		c := strings.TrimSpace(p)
		if strings.Trim(c, "-: ") != "" {
			allSep = false
		}
		cells = append(cells, c)
	}
	if allSep {
		// Markdown separator row (|---|---|).
		return nil
	}
	return cells
}

// --- strategy: loose OCR text ---

// listingLineRe matches numbered report rows: line number, an MLS number
// (8+ digits, optional alpha prefix), then the rest of the row.
var listingLineRe = regexp.MustCompile(`^\s*\d+\s+(\w*\d{8,})\s+(.*)$`)

// mlsNumberRe recognizes MLS-number-shaped tokens on their own.
var mlsNumberRe = regexp.MustCompile(`^\w*\d{8,}$`)

// statusTokenRe matches a leading status word, including OCR garbles that
// CleanStatus knows how to repair.
var statusTokenRe = regexp.MustCompile(`(?i)^(active|actlve|activo|pending|pendlng|pendng|closed|clsad|closd|cl0sed|sold|s0ld|expired|expirad|withdrawn|wlthdrawn|cancelled|canceled|cancoled|cencolod)\b`)

// priceTokenRe matches the first dollar-formatted price in a row.
var priceTokenRe = regexp.MustCompile(`\$\s*[\d,]{4,}|\b\d{1,3}(?:,\d{3})+\b|\b\d{5,9}\b`)

// summaryLineRe matches aggregate fragments in loose text.
var summaryLineRe = regexp.MustCompile(`(?i)(unit sales|median price|inventory|days on market)\s*:?\s*\$?\s*([\d,]+)`)

func parseLooseText(content string) *PageData {
	data := &PageData{}

	for _, line := range strings.Split(content, "\n") {
		if m := listingLineRe.FindStringSubmatch(line); m != nil {
			if raw, ok := parseListingRemainder(m[1], m[2]); ok {
				data.Listings = append(data.Listings, raw)
			}
			continue
		}

		if m := summaryLineRe.FindStringSubmatch(line); m != nil {
			v := normalize.ParseIntSafe(m[2])
			switch strings.ToLower(m[1]) {
			case "unit sales":
				data.UnitSales = v
			case "median price":
				data.MedianPrice = v
			case "inventory":
				data.Inventory = v
			case "days on market":
				data.AverageDaysOnMkt = v
			}
		}

		if m := statusLineRe.FindStringSubmatch(line); m != nil && m[3] != "%" && !strings.Contains(m[2], ".") {
			n, err := strconv.Atoi(m[2])
			if err == nil {
				switch strings.ToLower(m[1]) {
				case "active":
					data.StatusCounts.Active = n
				case "pending":
					data.StatusCounts.Pending = n
				case "closed", "sold":
					data.StatusCounts.Closed += n
				case "other":
					data.StatusCounts.Other = n
				}
			}
		}
	}

	return data
}

// parseListingRemainder extracts the fields following the MLS number using
// ordered token matches and positional range heuristics: bed counts land in
// [1,10], hundredths-encoded bath counts in [100,800], square footage in
// [400,8000], and construction years in (1800, 2100).
func parseListingRemainder(mls, rest string) (model.RawListing, bool) {
	raw := model.RawListing{MLSNumber: mls}
	remainder := strings.TrimSpace(rest)

	if m := statusTokenRe.FindString(remainder); m != "" {
		raw.Status = m
		remainder = strings.TrimSpace(remainder[len(m):])
	}

	priceLoc := priceTokenRe.FindStringIndex(remainder)
	if priceLoc == nil {
		return raw, false
	}
	raw.Price = strings.TrimSpace(remainder[priceLoc[0]:priceLoc[1]])

	// Address sits between the status and the price on these rows; when the
	// layout puts the price first, it follows the price instead.
	before := strings.TrimSpace(remainder[:priceLoc[0]])
	after := strings.TrimSpace(remainder[priceLoc[1]:])

	numericTail, address := splitNumericTail(after)
	raw.Address = before
	if address != "" && len(address) > len(before) {
		raw.Address = address
	}
	if raw.Address == "" {
		return raw, false
	}

	assignNumericFields(&raw, numericTail)
	return raw, true
}

// splitNumericTail splits trailing numeric tokens off a row fragment,
// returning (numbers, leading text).
func splitNumericTail(s string) ([]int, string) {
	fields := strings.Fields(s)
	var nums []int
	end := len(fields)
	for i := len(fields) - 1; i >= 0; i-- {
		cleaned := strings.Trim(fields[i], ".,")
		n, err := strconv.Atoi(strings.ReplaceAll(cleaned, ",", ""))
		if err != nil {
			// Allow half-bath decimals ("2.5") in the tail.
			f, ferr := strconv.ParseFloat(cleaned, 64)
			if ferr != nil {
				break
			}
			n = int(f * 100)
		}
		nums = append([]int{n}, nums...)
		end = i
	}
	return nums, strings.TrimSpace(strings.Join(fields[:end], " "))
}

// assignNumericFields maps unlabeled trailing numbers onto listing fields
// by value range.
func assignNumericFields(raw *model.RawListing, nums []int) {
	for _, n := range nums {
		switch {
		case n >= 1 && n <= 10 && raw.Beds == nil:
			raw.Beds = n
		case n >= 100 && n <= 800 && raw.Baths == nil:
			raw.Baths = n
		case n >= 400 && n <= 8000 && raw.Sqft == nil:
			raw.Sqft = n
		case n > 1800 && n <= 2100 && raw.YearBuilt == nil:
			raw.YearBuilt = n
		case n >= 0 && n < 1500 && raw.DaysOnMarket == nil:
			raw.DaysOnMarket = n
		}
	}
}
