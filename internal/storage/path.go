package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateDatabaseID rejects ids that could escape a data directory or bucket prefix.
func ValidateDatabaseID(dbID string) error {
	if !pathComponentPattern.MatchString(dbID) || strings.Contains(dbID, "..") {
		return fmt.Errorf("invalid database id: %q", dbID)
	}
	return nil
}

// DescriptionPath is the key of a table's column description file:
// <db>/database_description/<table>.csv
func DescriptionPath(dbID, tableName string) (string, error) {
	if err := ValidateDatabaseID(dbID); err != nil {
		return "", err
	}
	if tableName == "" || strings.ContainsAny(tableName, `/\`) || strings.Contains(tableName, "..") {
		return "", fmt.Errorf("invalid table name: %q", tableName)
	}
	return path.Join(dbID, "database_description", tableName+".csv"), nil
}
