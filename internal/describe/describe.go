// Package describe loads per-table column descriptions shipped alongside a
// database as <db>/database_description/<table>.csv.
package describe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

var ErrNotFound = errors.New("description not found")

// Column is one row of a description file.
type Column struct {
	OriginalName     string `json:"original_column_name"`
	Name             string `json:"column_name"`
	Description      string `json:"column_description"`
	DataFormat       string `json:"data_format"`
	ValueDescription string `json:"value_description"`
}

type Store interface {
	Table(ctx context.Context, dbID, table string) ([]Column, error)
}

// Lookup finds the description for a column name. The first row whose
// original name contains name, ignoring case, wins; no match yields an empty
// Column. With preferExact an exact case-insensitive match is taken over any
// earlier substring match.
func Lookup(columns []Column, name string, preferExact bool) Column {
	needle := strings.ToLower(name)
	if preferExact {
		for _, c := range columns {
			if strings.ToLower(strings.TrimSpace(c.OriginalName)) == needle {
				return c
			}
		}
	}
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c.OriginalName), needle) {
			return c
		}
	}
	return Column{}
}

// Descriptions maps table -> column -> description.
type Descriptions map[string]map[string]Column

func (d Descriptions) Get(table, column string) Column {
	return d[table][column]
}

// ForSchema resolves descriptions for every column of the given tables. A
// missing or unreadable file leaves that table's columns empty.
func ForSchema(ctx context.Context, store Store, logger *slog.Logger, dbID string, tables map[string][]string, preferExact bool) Descriptions {
	out := make(Descriptions, len(tables))
	for table, columns := range tables {
		var rows []Column
		if store != nil {
			var err error
			rows, err = store.Table(ctx, dbID, table)
			if err != nil && !errors.Is(err, ErrNotFound) && logger != nil {
				logger.WarnContext(ctx, "column descriptions unavailable",
					slog.String("db_id", dbID),
					slog.String("table", table),
					slog.String("error", err.Error()),
				)
			}
		}
		byColumn := make(map[string]Column, len(columns))
		for _, column := range columns {
			byColumn[column] = Lookup(rows, column, preferExact)
		}
		out[table] = byColumn
	}
	return out
}
