package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlquorum/sqlquorum/internal/storage"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"
)

// Dialect selects the introspection queries used for a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

type Config struct {
	Driver          string
	DataDir         string
	DSNTemplate     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Handle is an open, pinged connection pool for one target database.
type Handle struct {
	DB      *sql.DB
	Dialect Dialect
	DBID    string
}

func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}
	return h.DB.Close()
}

// Opener resolves a db id to a live read-only connection.
type Opener interface {
	Open(ctx context.Context, dbID string) (*Handle, error)
}

type DriverOpener struct {
	cfg Config
}

func NewOpener(cfg Config) (*DriverOpener, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverDuckDB:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return nil, fmt.Errorf("data dir is required for driver %q", cfg.Driver)
		}
	case DriverPostgres:
		if !strings.Contains(cfg.DSNTemplate, "{db}") {
			return nil, fmt.Errorf("dsn template must contain {db}")
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &DriverOpener{cfg: cfg}, nil
}

func (o *DriverOpener) Driver() string {
	return o.cfg.Driver
}

func (o *DriverOpener) Open(ctx context.Context, dbID string) (*Handle, error) {
	if err := storage.ValidateDatabaseID(dbID); err != nil {
		return nil, err
	}

	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch o.cfg.Driver {
	case DriverSQLite:
		db, err = openSQLite(o.cfg.DataDir, dbID)
		dialect = DialectSQLite
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, strings.ReplaceAll(o.cfg.DSNTemplate, "{db}", dbID))
		dialect = DialectPostgres
	case DriverDuckDB:
		db, err = openDuckDB(ctx, o.cfg.DataDir, dbID)
		dialect = DialectDuckDB
	default:
		err = fmt.Errorf("unsupported driver %q", o.cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", dbID, err)
	}

	o.tune(db)

	pingCtx, cancel := context.WithTimeout(ctx, o.cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %q: %w", dbID, err)
	}
	return &Handle{DB: db, Dialect: dialect, DBID: dbID}, nil
}

func (o *DriverOpener) tune(db *sql.DB) {
	if o.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.cfg.MaxOpenConns)
	}
	if o.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.cfg.MaxIdleConns)
	}
	if o.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(o.cfg.ConnMaxIdleTime)
	}
	if o.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.cfg.ConnMaxLifetime)
	}
}
