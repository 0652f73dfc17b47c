// Package sqlitetest builds SQLite database fixtures laid out the way the
// opener expects: <dir>/<db>/<db>.sqlite.
package sqlitetest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Create writes a database named dbID under dataDir and runs the statements in order.
func Create(t testing.TB, dataDir, dbID string, statements ...string) string {
	t.Helper()
	dir := filepath.Join(dataDir, dbID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, dbID+".sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}
	return path
}

// WriteDescription writes <dataDir>/<db>/database_description/<table>.csv.
func WriteDescription(t testing.TB, dataDir, dbID, table, body string) {
	t.Helper()
	dir := filepath.Join(dataDir, dbID, "database_description")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, table+".csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// ClubSchema is a small club database used across package tests.
var ClubSchema = []string{
	`CREATE TABLE member (member_id TEXT PRIMARY KEY, first_name TEXT, last_name TEXT, position TEXT, link_to_major TEXT REFERENCES major(major_id))`,
	`CREATE TABLE major (major_id TEXT PRIMARY KEY, major_name TEXT, department TEXT)`,
	`CREATE TABLE event (event_id TEXT PRIMARY KEY, event_name TEXT, event_date TEXT)`,
	`CREATE TABLE attendance (link_to_event TEXT, link_to_member TEXT, PRIMARY KEY (link_to_event, link_to_member), FOREIGN KEY (link_to_event) REFERENCES event(event_id), FOREIGN KEY (link_to_member) REFERENCES member(member_id))`,
	`INSERT INTO major VALUES ('m1', 'Physics', 'Science'), ('m2', 'History', 'Arts')`,
	`INSERT INTO member VALUES ('a', 'Ada', 'Lovelace', 'President', 'm1'), ('b', 'Alan', 'Turing', 'Member', 'm1'), ('c', 'Grace', 'Hopper', 'Treasurer', 'm2')`,
	`INSERT INTO event VALUES ('e1', 'Kickoff', '2019-09-01'), ('e2', 'Mixer', '2019-10-01')`,
	`INSERT INTO attendance VALUES ('e1', 'a'), ('e1', 'b'), ('e2', 'a'), ('e2', 'c')`,
}
