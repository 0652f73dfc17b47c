package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLitePath is <dataDir>/<db>/<db>.sqlite.
func SQLitePath(dataDir, dbID string) string {
	return filepath.Join(dataDir, dbID, dbID+".sqlite")
}

func openSQLite(dataDir, dbID string) (*sql.DB, error) {
	path := SQLitePath(dataDir, dbID)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat sqlite file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("sqlite path %q is a directory", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return sql.Open(DriverSQLite, "file:"+filepath.ToSlash(abs)+"?mode=ro")
}
