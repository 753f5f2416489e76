// Package extract recovers JSON documents from LLM replies, which routinely
// wrap their answer in markdown fences or conversational prose.
package extract

import (
	"encoding/json"
	"strings"
)

// JSON returns the first complete JSON object or array found in raw.
//
// The scan strips markdown code fences, then walks the text with a
// string-literal and escape aware brace counter, so braces inside JSON
// strings never unbalance the result. Returns the trimmed input unchanged
// when no balanced document is found; callers decide whether the remainder
// parses.
func JSON(raw string) string {
	cleaned := stripFences(raw)

	// An array reply ([{...},...]) must be kept whole, so whichever opener
	// appears first wins.
	objIdx := strings.IndexByte(cleaned, '{')
	arrIdx := strings.IndexByte(cleaned, '[')

	order := [][2]byte{{'{', '}'}, {'[', ']'}}
	if arrIdx >= 0 && (objIdx < 0 || arrIdx < objIdx) {
		order = [][2]byte{{'[', ']'}, {'{', '}'}}
	}

	for _, pair := range order {
		if doc := scanBalanced(cleaned, pair[0], pair[1]); doc != "" {
			return doc
		}
	}
	return cleaned
}

// stripFences removes a surrounding ```json ... ``` (or bare ```) block
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line (``` or ```json)
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}

	// Drop the closing fence if present
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	return strings.TrimSpace(trimmed)
}

// scanBalanced extracts the first balanced opener..closer region that holds
// a parseable document. A stray opener in surrounding prose can anchor a
// walk that never balances, or balances around non-JSON text, so the scan
// retries from each later opener before giving up.
func scanBalanced(text string, opener, closer byte) string {
	for from := 0; from < len(text); {
		rel := strings.IndexByte(text[from:], opener)
		if rel < 0 {
			return ""
		}
		start := from + rel

		if doc, ok := walkBalanced(text[start:], opener, closer); ok && json.Valid([]byte(doc)) {
			return doc
		}
		from = start + 1
	}
	return ""
}

// walkBalanced walks text, which begins at an opener, with a string-literal
// and escape aware depth counter. Reports false when the document never
// closes.
func walkBalanced(text string, opener, closer byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}

		switch {
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// Braces inside strings do not count
		case ch == opener:
			depth++
		case ch == closer:
			depth--
			if depth == 0 {
				return text[:i+1], true
			}
		}
	}

	return "", false
}
