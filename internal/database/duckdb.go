package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// DuckDBPath is <dataDir>/<db>/<db>.duckdb.
func DuckDBPath(dataDir, dbID string) string {
	return filepath.Join(dataDir, dbID, dbID+".duckdb")
}

// openDuckDB opens a database file read-only when one exists. Otherwise every
// <dataDir>/<db>/*.parquet file is mounted as a view named after its stem in
// an in-memory database.
func openDuckDB(ctx context.Context, dataDir, dbID string) (*sql.DB, error) {
	path := DuckDBPath(dataDir, dbID)
	if _, err := os.Stat(path); err == nil {
		return sql.Open(DriverDuckDB, path+"?access_mode=READ_ONLY")
	}

	files, err := filepath.Glob(filepath.Join(dataDir, dbID, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no duckdb file or parquet files for %q", dbID)
	}
	sort.Strings(files)

	db, err := sql.Open(DriverDuckDB, "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	for _, file := range files {
		table := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, QuoteIdent(table), quoteString(file))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view for %q: %w", table, err)
		}
	}
	return db, nil
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
