package report

import (
	"encoding/json"
	"strings"
)

// cleanJSON strips markdown fences and conversational wrapping, extracts
// the first balanced-looking JSON object, and repairs truncation.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	} else if start >= 0 {
		// No closing brace at all: keep from the first brace and repair.
		text = text[start:]
	}

	text = strings.TrimSpace(text)

	if json.Valid([]byte(text)) {
		return text
	}

	// A response cut off mid-listing can't be fixed by closing delimiters
	// alone; drop the incomplete trailing object first.
	if strings.Contains(text, `"listings"`) {
		text = truncateIncompleteListings(text)
	}

	return repairTruncatedJSON(text)
}

// truncateIncompleteListings finds the listings array and cuts it back to
// the last syntactically complete listing object, so a response truncated
// mid-object keeps every listing before the cut.
func truncateIncompleteListings(text string) string {
	arrStart := strings.Index(text, `"listings"`)
	if arrStart < 0 {
		return text
	}
	openBracket := strings.Index(text[arrStart:], "[")
	if openBracket < 0 {
		return text
	}
	openBracket += arrStart

	// Walk the array tracking object depth; remember where each complete
	// top-level object ends.
	depth := 0
	inString := false
	escape := false
	lastComplete := -1

	for i := openBracket + 1; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				lastComplete = i
			}
		case ']':
			if depth == 0 {
				// Array closed cleanly; nothing to truncate.
				return text
			}
		}
	}

	if lastComplete < 0 {
		// No complete object at all: empty the array.
		return text[:openBracket+1]
	}
	return text[:lastComplete+1]
}

// repairTruncatedJSON closes any unclosed brackets or braces in truncated
// JSON.
func repairTruncatedJSON(text string) string {
	if len(text) == 0 {
		return text
	}

	// Track open delimiters in order.
	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	// An unterminated string would defeat the delimiter closing below.
	if inString {
		text += `"`
	}

	// Close unclosed delimiters in reverse order.
	for i := len(stack) - 1; i >= 0; i-- {
		// Trim trailing comma before closing (common in truncated arrays).
		text = strings.TrimRight(text, " \t\n\r,")
		text += string(stack[i])
	}

	return text
}
