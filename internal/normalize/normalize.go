// Package normalize cleans OCR-derived listing fields into validated values.
// All functions here are total: they never fail, they return a best-effort
// value (or the documented zero/default) for any input.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/highcountry-realty/market-cli/internal/model"
)

// ocrSubstitution is one literal replacement tuned to the observed OCR
// error corpus. New error patterns require table entries, not logic changes.
type ocrSubstitution struct {
	from string
	to   string
}

// addressSubstitutions is applied in order before punctuation collapse.
var addressSubstitutions = []ocrSubstitution{
	{"Diwvo", "Drive"},
	{"Drlve", "Drive"},
	{"Viow", "View"},
	{"Vlew", "View"},
	{"Tahqun", "Tahquitz"},
	{"Tahquit?", "Tahquitz"},
	{"Stroot", "Street"},
	{"Clrcle", "Circle"},
	{"Mountaln", "Mountain"},
	{"Ridgo", "Ridge"},
	{"?", "z"},
}

var nonWordRe = regexp.MustCompile(`[^\w\s#]`)
var spaceRe = regexp.MustCompile(`\s+`)

// Location lowercases and canonicalizes a community name. Returns
// model.LocationInvalid for anything outside the closed set; callers must
// check validity before use.
func Location(raw string) model.Location {
	return model.ParseLocation(raw)
}

// CleanAddress repairs known OCR garbles, collapses punctuation runs to
// spaces, and trims. The result may still be short or empty; length
// validation happens in BuildListing.
func CleanAddress(raw string) string {
	s := raw
	for _, sub := range addressSubstitutions {
		s = strings.ReplaceAll(s, sub.from, sub.to)
	}
	s = nonWordRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// statusTokens maps lowercase OCR-garbled status text to canonical
// statuses. Checked before exact status names so garbled forms win.
var statusTokens = map[string]model.Status{
	"clsad":     model.StatusClosed,
	"closd":     model.StatusClosed,
	"cl0sed":    model.StatusClosed,
	"cancoled":  model.StatusWithdrawn,
	"cencolod":  model.StatusWithdrawn,
	"cancelled": model.StatusWithdrawn,
	"canceled":  model.StatusWithdrawn,
	"actlve":    model.StatusActive,
	"activo":    model.StatusActive,
	"pendlng":   model.StatusPending,
	"pendng":    model.StatusPending,
	"s0ld":      model.StatusSold,
	"expirad":   model.StatusExpired,
	"wlthdrawn": model.StatusWithdrawn,
}

// CleanStatus maps raw status text to the canonical enum. Garbled-token
// matches are tried first, then exact names. Unrecognized input defaults to
// StatusActive; this is the single canonical default across the codebase.
func CleanStatus(raw string) model.Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.StatusActive
	}

	if st, ok := statusTokens[s]; ok {
		return st
	}

	switch model.Status(s) {
	case model.StatusActive, model.StatusPending, model.StatusClosed,
		model.StatusSold, model.StatusExpired, model.StatusWithdrawn:
		return model.Status(s)
	}

	// Prefix match covers trailing OCR noise ("Active*", "Pending (backup)").
	for _, st := range []model.Status{
		model.StatusActive, model.StatusPending, model.StatusClosed,
		model.StatusSold, model.StatusExpired, model.StatusWithdrawn,
	} {
		if strings.HasPrefix(s, string(st)) {
			return st
		}
	}

	return model.StatusActive
}

var nonDigitRe = regexp.MustCompile(`[^\d]`)
var nonNumericRe = regexp.MustCompile(`[^\d.\-]`)

// ParsePrice strips everything but digits and parses the remainder.
// Invalid or empty input yields 0.
func ParsePrice(raw string) int {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// ParseIntSafe strips non-digit characters and parses; 0 on failure.
func ParseIntSafe(raw string) int {
	return ParsePrice(raw)
}

// ParseFloatSafe strips non-numeric characters and parses; 0 on failure.
func ParseFloatSafe(raw string) float64 {
	cleaned := nonNumericRe.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseBathrooms handles both plain counts ("2.5") and the fixed-point
// hundredths encoding some MLS exports use ("250" meaning 2.50). Values
// over 50 are treated as hundredths.
func ParseBathrooms(raw string) float64 {
	f := ParseFloatSafe(raw)
	if f > 50 {
		f = f / 100
	}
	if f < 0 {
		return 0
	}
	return f
}

// YearBuilt validates a construction year: valid only when
// 1800 < year <= current year. Anything else is nil.
func YearBuilt(raw string) *int {
	y := ParseIntSafe(raw)
	if y <= 1800 || y > model.CurrentYear() {
		return nil
	}
	return &y
}

// DaysOnMarket parses a non-negative day count; nil when absent or invalid.
func DaysOnMarket(raw string) *int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	d := ParseIntSafe(s)
	if d < 0 {
		return nil
	}
	return &d
}

// Stringify renders a loosely-typed extracted value as a string. JSON
// numbers arrive as float64; integral values must not pick up a ".0" suffix
// or the digit-stripping parsers would misread them.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}
