// Package schema extracts the table, column and key structure of a target
// database.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSchemaUnavailable wraps every failure to open or introspect a database.
var ErrSchemaUnavailable = errors.New("schema unavailable")

type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// ForeignKey is one column-level edge Table.Column -> RefTable.RefColumn.
// Curated edges come from a known-database key patch and are trusted as is.
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
	Curated   bool   `json:"curated,omitempty"`
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf(`%s."%s"=%s."%s"`, fk.Table, fk.Column, fk.RefTable, fk.RefColumn)
}

// Graph is the key graph of one database. Tables keep introspection order.
type Graph struct {
	DBID        string              `json:"db_id"`
	Tables      []Table             `json:"tables"`
	PrimaryKeys map[string][]string `json:"primary_keys"`
	ForeignKeys []ForeignKey        `json:"foreign_keys"`
}

// Selection maps a table to the columns a stage should focus on.
type Selection map[string][]string

// Tables returns the selected table names in sorted order.
func (s Selection) Tables() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for table, columns := range s {
		out[table] = append([]string(nil), columns...)
	}
	return out
}

func (g *Graph) TableNames() []string {
	names := make([]string, 0, len(g.Tables))
	for _, table := range g.Tables {
		names = append(names, table.Name)
	}
	return names
}

// Columns is the full table -> ordered columns mapping.
func (g *Graph) Columns() map[string][]string {
	out := make(map[string][]string, len(g.Tables))
	for _, table := range g.Tables {
		out[table.Name] = append([]string(nil), table.Columns...)
	}
	return out
}

func (g *Graph) Table(name string) (Table, bool) {
	for _, table := range g.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

func (g *Graph) HasColumn(table, column string) bool {
	t, ok := g.Table(table)
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Validate checks that every introspected foreign key points at tables and
// columns present in the graph. Curated edges are skipped.
func (g *Graph) Validate() error {
	var errs []error
	for _, fk := range g.ForeignKeys {
		if fk.Curated {
			continue
		}
		if !g.HasColumn(fk.Table, fk.Column) {
			errs = append(errs, fmt.Errorf("foreign key %s: unknown source column", fk))
		}
		if !g.HasColumn(fk.RefTable, fk.RefColumn) {
			errs = append(errs, fmt.Errorf("foreign key %s: unknown referenced column", fk))
		}
	}
	return errors.Join(errs...)
}

// PrimaryKeysFor returns the primary keys of the selected tables, or of
// every table when the selection is empty.
func (g *Graph) PrimaryKeysFor(sel Selection) map[string][]string {
	out := make(map[string][]string)
	for table, keys := range g.PrimaryKeys {
		if len(sel) > 0 {
			if _, ok := sel[table]; !ok {
				continue
			}
		}
		out[table] = append([]string(nil), keys...)
	}
	return out
}
