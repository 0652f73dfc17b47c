package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotReadOnly = errors.New("only read-only SELECT/WITH queries are allowed")

// SQLEngine runs statements over an already open database/sql pool.
type SQLEngine struct {
	db *sql.DB
}

func NewSQLEngine(db *sql.DB) *SQLEngine {
	return &SQLEngine{db: db}
}

// Execute runs one read-only statement. Duration covers execution and the
// fetch of at most RowLimit rows.
func (e *SQLEngine) Execute(ctx context.Context, request Request) (Result, error) {
	if e.db == nil {
		return Result{}, fmt.Errorf("database is required")
	}
	sqlText := StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	if !IsReadOnly(sqlText) {
		return Result{}, ErrNotReadOnly
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if request.RowLimit > 0 && len(result.Rows) >= request.RowLimit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// IsReadOnly accepts a single SELECT or WITH statement. A semicolon outside
// quotes means a second statement and is rejected.
func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return false
	}
	var quote rune
	for _, r := range normalized {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return false
		}
	}
	return true
}
