// Package jsonx recovers a single JSON object from free-form model output.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object found")

var (
	fencePattern         = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	curlyQuotes          = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// Extract returns the bytes of one JSON object found in text. It tries, in
// order: the whole trimmed text, the last ```json fenced block, and the first
// balanced {...} span after quote and trailing-comma repair.
func Extract(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if isObject(trimmed) {
		return []byte(trimmed), nil
	}

	if matches := fencePattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		block := strings.TrimSpace(matches[len(matches)-1][1])
		if isObject(block) {
			return []byte(block), nil
		}
		if repaired := repair(block); isObject(repaired) {
			return []byte(repaired), nil
		}
	}

	repaired := repair(trimmed)
	if span, ok := balancedObject(repaired); ok {
		if isObject(span) {
			return []byte(span), nil
		}
		if fixed := trailingCommaPattern.ReplaceAllString(span, "$1"); isObject(fixed) {
			return []byte(fixed), nil
		}
	}
	return nil, ErrNoJSON
}

// Decode extracts a JSON object from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrNoJSON, err)
	}
	return nil
}

func isObject(text string) bool {
	if !strings.HasPrefix(text, "{") {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(text), &probe) == nil
}

// repair normalizes typographic quotes and, for text that has no double
// quotes at all, treats single quotes as string delimiters.
func repair(text string) string {
	text = curlyQuotes.Replace(text)
	if !strings.Contains(text, `"`) {
		text = strings.ReplaceAll(text, "'", `"`)
	}
	return trailingCommaPattern.ReplaceAllString(text, "$1")
}

// balancedObject returns the first {...} span whose braces balance outside
// of string literals.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
