package generator

import (
	"regexp"
	"strings"
)

// FinalSQLMarker prefixes the SQL in a reasoning episode's output.
const FinalSQLMarker = "FINAL SQL:"

var (
	// A language tag is only dropped when whitespace follows it, so an inline
	// fence keeps the first keyword of its statement.
	fencePattern    = regexp.MustCompile("(?i)```(?:(?:sqlite|sql|postgresql|duckdb|json)(?:\\s|$))?")
	emphasisPattern = regexp.MustCompile(`\*{2,}`)
)

// NormalizeSQL extracts the SQL after the first FINAL SQL marker and returns
// it as a single line ending in exactly one semicolon. Markdown fences,
// emphasis and SQL comments are removed. Asterisks inside the statement,
// as in SELECT * or COUNT(*), are kept. The bool is false when there is no
// marker or nothing is left.
func NormalizeSQL(raw string) (string, bool) {
	idx := strings.Index(raw, FinalSQLMarker)
	if idx < 0 {
		return "", false
	}
	body := raw[idx+len(FinalSQLMarker):]
	if next := strings.Index(body, FinalSQLMarker); next >= 0 {
		body = body[:next]
	}
	body = fencePattern.ReplaceAllString(body, " ")
	body = stripComments(body)
	body = emphasisPattern.ReplaceAllString(body, " ")
	body = strings.Join(strings.Fields(body), " ")
	body = strings.Trim(body, "*")
	for {
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), ";"))
		if trimmed == body {
			break
		}
		body = trimmed
	}
	if body == "" {
		return "", false
	}
	return body + ";", true
}

// stripComments removes -- line comments and /* */ block comments that are
// not inside quoted text.
func stripComments(sqlText string) string {
	var out strings.Builder
	out.Grow(len(sqlText))
	var quote byte
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case quote != 0:
			out.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}
			out.WriteByte('\n')
		case c == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				i = len(sqlText)
			} else {
				i += end + 3
			}
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
