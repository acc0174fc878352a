// Package jsonutil extracts JSON objects from LLM text output.
//
// Models are instructed to respond with a bare JSON object, but in practice
// responses arrive wrapped in markdown code fences, preceded by prose, or
// truncated mid-structure when the token ceiling was hit. Sanitize deals with
// all three so callers can unmarshal with confidence.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONFound is returned when the response contains no JSON object at all.
var ErrNoJSONFound = errors.New("no JSON object found in response")

// ErrInvalidJSON marks responses where a JSON object was located but does not
// parse even after repair. Callers treat this as retryable: resampling the
// same prompt often yields a well-formed response.
var ErrInvalidJSON = errors.New("invalid JSON in response")

// Sanitize reduces raw model output to a string containing exactly one JSON
// object. It strips code fences and surrounding prose, and attempts structural
// repair of truncated output. The result is not guaranteed to parse; use
// ParseObject for sanitize-and-unmarshal in one step.
func Sanitize(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	// Strip markdown code fences. The language tag (```json) sits on the
	// opening fence only.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	// Some responses contain stray fences mid-text as well.
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", ErrNoJSONFound
	}

	end := strings.LastIndex(text, "}")
	if end > start {
		// Slicing to the outermost braces discards leading/trailing prose
		// even when the model disobeyed formatting instructions.
		return text[start : end+1], nil
	}

	// No closing brace: output was truncated mid-structure.
	return repairTruncated(text[start:]), nil
}

// ParseObject sanitizes raw model output and unmarshals the resulting JSON
// object into v. Parse failures are wrapped with ErrInvalidJSON so the retry
// layer can classify them as transient.
func ParseObject(raw string, v any) error {
	text, err := Sanitize(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v (response: %s)", ErrInvalidJSON, err, truncateForLog(text))
	}
	return nil
}

// repairTruncated appends closers to a JSON fragment that was cut off before
// its closing brace. It scans the fragment tracking string literals (with
// escape sequences) and counts unmatched braces and brackets outside strings,
// then closes an open string literal, all open arrays, and finally all open
// objects.
//
// Closing all arrays before all objects is wrong for interleaved nesting
// (array inside object inside array), but upstream truncation rarely leaves
// such shapes and the subsequent parse catches the cases it gets wrong. Kept
// as a pragmatic heuristic rather than a full stack-based closer.
func repairTruncated(fragment string) string {
	var (
		inString    bool
		escaped     bool
		openObjects int
		openArrays  int
	)

	for _, r := range fragment {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch r {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			openObjects++
		case '}':
			openObjects--
		case '[':
			openArrays++
		case ']':
			openArrays--
		}
	}

	var b strings.Builder
	b.WriteString(fragment)
	if inString {
		b.WriteByte('"')
	}
	for i := 0; i < openArrays; i++ {
		b.WriteByte(']')
	}
	for i := 0; i < openObjects; i++ {
		b.WriteByte('}')
	}
	return b.String()
}

func truncateForLog(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
