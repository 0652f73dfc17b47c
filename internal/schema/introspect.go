package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sqlquorum/sqlquorum/internal/database"
)

// Introspector reads tables, ordered columns and declared keys from a live
// connection.
type Introspector interface {
	Introspect(ctx context.Context, db *sql.DB) (*Graph, error)
}

func introspectorFor(dialect database.Dialect) (Introspector, error) {
	switch dialect {
	case database.DialectSQLite:
		return SQLiteIntrospector{}, nil
	case database.DialectPostgres:
		return InformationSchemaIntrospector{Schema: "public", IncludeViews: false}, nil
	case database.DialectDuckDB:
		return InformationSchemaIntrospector{Schema: "main", IncludeViews: true}, nil
	default:
		return nil, fmt.Errorf("no introspector for dialect %q", dialect)
	}
}

type SQLiteIntrospector struct{}

func (SQLiteIntrospector) Introspect(ctx context.Context, db *sql.DB) (*Graph, error) {
	names, err := queryStrings(ctx, db, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	g := &Graph{PrimaryKeys: make(map[string][]string)}
	var pending []sqliteFK

	for _, name := range names {
		table, pk, err := sqliteTableInfo(ctx, db, name)
		if err != nil {
			return nil, err
		}
		g.Tables = append(g.Tables, table)
		if len(pk) > 0 {
			g.PrimaryKeys[name] = pk
		}

		fks, err := sqliteForeignKeys(ctx, db, name)
		if err != nil {
			return nil, err
		}
		pending = append(pending, fks...)
	}

	// A foreign key without target columns references the primary key, column
	// seq of the key for column seq of the constraint.
	for _, p := range pending {
		fk := p.ForeignKey
		if fk.RefColumn == "" {
			keys := g.PrimaryKeys[fk.RefTable]
			if p.seq >= len(keys) {
				continue
			}
			fk.RefColumn = keys[p.seq]
		}
		g.ForeignKeys = append(g.ForeignKeys, fk)
	}
	return g, nil
}

func sqliteTableInfo(ctx context.Context, db *sql.DB, table string) (Table, []string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, database.QuoteIdent(table)))
	if err != nil {
		return Table{}, nil, fmt.Errorf("table info %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type keyed struct {
		name string
		pos  int
	}
	out := Table{Name: table}
	var keys []keyed
	for rows.Next() {
		var (
			cid      int
			name     string
			colType  sql.NullString
			notNull  int
			defValue sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defValue, &pk); err != nil {
			return Table{}, nil, fmt.Errorf("scan table info %q: %w", table, err)
		}
		out.Columns = append(out.Columns, name)
		if pk > 0 {
			keys = append(keys, keyed{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return Table{}, nil, fmt.Errorf("iterate table info %q: %w", table, err)
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].pos < keys[j].pos })
	pk := make([]string, 0, len(keys))
	for _, k := range keys {
		pk = append(pk, k.name)
	}
	return out, pk, nil
}

// sqliteFK is one column of a foreign key constraint; seq is the column's
// position within the constraint.
type sqliteFK struct {
	ForeignKey
	seq int
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, table string) ([]sqliteFK, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, database.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("foreign keys %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []sqliteFK
	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete sql.NullString
			match              sql.NullString
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign keys %q: %w", table, err)
		}
		out = append(out, sqliteFK{
			ForeignKey: ForeignKey{Table: table, Column: from, RefTable: refTable, RefColumn: to.String},
			seq:        seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys %q: %w", table, err)
	}
	return out, nil
}

// InformationSchemaIntrospector reads the ANSI catalog views exposed by
// PostgreSQL and DuckDB.
type InformationSchemaIntrospector struct {
	Schema       string
	IncludeViews bool
}

const (
	infoTablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type IN (%s)
ORDER BY table_name`

	infoColumnsQuery = `SELECT table_name, column_name FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

	infoPrimaryKeysQuery = `SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = tc.constraint_schema
 AND kcu.constraint_name = tc.constraint_name
 AND kcu.table_name = tc.table_name
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
ORDER BY kcu.table_name, kcu.ordinal_position`

	infoForeignKeysQuery = `SELECT kcu.table_name, kcu.column_name, ref.table_name, ref.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = rc.constraint_schema
 AND kcu.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage ref
  ON ref.constraint_schema = rc.unique_constraint_schema
 AND ref.constraint_name = rc.unique_constraint_name
 AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = $1
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
)

func (i InformationSchemaIntrospector) Introspect(ctx context.Context, db *sql.DB) (*Graph, error) {
	schemaName := i.Schema
	if schemaName == "" {
		schemaName = "public"
	}
	tableTypes := `'BASE TABLE'`
	if i.IncludeViews {
		tableTypes = `'BASE TABLE', 'VIEW'`
	}

	names, err := queryStrings(ctx, db, fmt.Sprintf(infoTablesQuery, tableTypes), schemaName)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	g := &Graph{PrimaryKeys: make(map[string][]string)}
	known := make(map[string]int, len(names))
	for idx, name := range names {
		known[name] = idx
		g.Tables = append(g.Tables, Table{Name: name})
	}

	err = queryPairs(ctx, db, infoColumnsQuery, schemaName, func(table, column string) {
		if idx, ok := known[table]; ok {
			g.Tables[idx].Columns = append(g.Tables[idx].Columns, column)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	err = queryPairs(ctx, db, infoPrimaryKeysQuery, schemaName, func(table, column string) {
		if _, ok := known[table]; ok {
			g.PrimaryKeys[table] = append(g.PrimaryKeys[table], column)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list primary keys: %w", err)
	}

	rows, err := db.QueryContext(ctx, infoForeignKeysQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		g.ForeignKeys = append(g.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return g, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func queryPairs(ctx context.Context, db *sql.DB, query, schemaName string, fn func(a, b string)) error {
	rows, err := db.QueryContext(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}
