package report

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema constrains the shape of the structured-extraction
// response before it reaches the normalizers. It is deliberately loose
// about listing field types (strings and numbers both occur) but strict
// about the envelope.
const extractionSchema = `{
	"type": "object",
	"required": ["listings"],
	"properties": {
		"statusCounts": {
			"type": "object",
			"properties": {
				"active":  {"type": "integer", "minimum": 0},
				"pending": {"type": "integer", "minimum": 0},
				"closed":  {"type": "integer", "minimum": 0},
				"other":   {"type": "integer", "minimum": 0}
			}
		},
		"totalListings":       {"type": "integer", "minimum": 0},
		"medianPrice":         {"type": ["integer", "number"], "minimum": 0},
		"averageDaysOnMarket": {"type": ["integer", "number"], "minimum": 0},
		"listings": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"mls":          {"type": ["string", "number"]},
					"status":       {"type": "string"},
					"price":        {"type": ["string", "number"]},
					"address":      {"type": "string"},
					"beds":         {"type": ["string", "number", "null"]},
					"baths":        {"type": ["string", "number", "null"]},
					"sqft":         {"type": ["string", "number", "null"]},
					"yearBuilt":    {"type": ["string", "number", "null"]},
					"daysOnMarket": {"type": ["string", "number", "null"]}
				}
			}
		},
		"marketTimeRanges": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"label": {"type": "string"},
					"count": {"type": ["integer", "number"], "minimum": 0}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("extraction.schema.json", extractionSchema)

// validateExtraction checks repaired JSON against the extraction schema.
func validateExtraction(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return eris.Wrap(err, "report: parse extraction JSON")
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return eris.Wrap(err, "report: extraction schema validation")
	}
	return nil
}

// decodeExtraction parses validated JSON into the transient extraction
// struct. MLS numbers arriving as bare numbers are restringified.
func decodeExtraction(raw string) (*rawExtractionJSON, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	var out rawExtractionJSON
	if err := dec.Decode(&out); err != nil {
		return nil, eris.Wrap(err, "report: decode extraction JSON")
	}
	return &out, nil
}
