package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON payload found")

func closing(f Format) byte {
	if f == FormatArray {
		return ']'
	}
	return '}'
}

// ExtractJSON returns the substring of text from the first opening bracket
// of the requested format to the last matching closing bracket. Markdown
// fences and surrounding prose are discarded.
func ExtractJSON(text string, f Format) (string, error) {
	if f != FormatArray {
		f = FormatObject
	}
	start := strings.IndexByte(text, byte(f))
	end := strings.LastIndexByte(text, closing(f))
	if start == -1 || end == -1 || end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// Decode extracts the payload from a provider response and hands it to
// parse. Every failure is returned as an *ExtractionError wrapping the cause.
func Decode[T any](name Name, text string, f Format, parse func(raw []byte) (T, error)) (T, error) {
	raw, err := ExtractJSON(text, f)
	if err != nil {
		var zero T
		return zero, &ExtractionError{Provider: name, Raw: text, Cause: err}
	}
	out, err := parse([]byte(raw))
	if err != nil {
		return out, &ExtractionError{Provider: name, Raw: text, Cause: err}
	}
	return out, nil
}

// Unmarshal is a Decode parse function that decodes the payload into T.
func Unmarshal[T any](raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}
