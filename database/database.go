package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/tomyedwab/ledger/database/migrations"
)

const driverName = "sqlite3"

type Options struct {
	// Path of the database file. Its parent directory is created if absent.
	Path string

	MaxOpenConns int
	BusyTimeout  time.Duration
	Logger       *slog.Logger
}

type Database struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger

	// identity is the file the pool was opened on, recorded once the schema
	// is in place. Nil until then.
	identity atomic.Pointer[os.FileInfo]
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dataSourceName builds a mattn/go-sqlite3 URI that applies the pragmas on
// every connection the pool opens, not just the first one. mode=rw stops a
// reconnect from creating a fresh empty file in place of a deleted one.
func dataSourceName(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("mode", "rw")
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	return "file:" + uriPathEscaper.Replace(path) + "?" + params.Encode()
}

// Open creates the database file if needed, configures the pool and brings
// the schema up to date. Any failure is returned unretried; the caller decides
// whether it is fatal.
func Open(ctx context.Context, opts Options) (*Database, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("database: path is required")
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 5
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}

	// The DSN opens read-write without create, so the file must exist first.
	// SQLite treats an empty file as an empty database.
	f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", opts.Path, err)
	}
	f.Close()

	d := &Database{
		path:   opts.Path,
		logger: logger,
	}
	connector := &fileConnector{
		dsn:    dataSourceName(opts.Path, opts.BusyTimeout),
		driver: &sqlite3.SQLiteDriver{},
		check:  d.Check,
	}
	db := sqlx.NewDb(sql.OpenDB(connector), driverName)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)
	d.db = db

	if err := checkPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	applied, err := migrations.Run(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", opts.Path, err)
	}

	// Move the schema out of the WAL so the main file carries a valid header
	// before its identity is recorded.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint %s: %w", opts.Path, err)
	}
	info, err := os.Stat(opts.Path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stat %s: %w", opts.Path, err)
	}
	d.identity.Store(&info)
	if err := d.Check(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized",
		"path", opts.Path,
		"max_open_conns", opts.MaxOpenConns,
		"busy_timeout", opts.BusyTimeout,
		"migrations_applied", len(applied),
	)
	return d, nil
}

// checkPragmas fails if the driver silently ignored the journal mode, which
// happens for example on filesystems without shared memory support.
func checkPragmas(ctx context.Context, db *sqlx.DB) error {
	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		return fmt.Errorf("read journal_mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("journal_mode is %q, want wal", journalMode)
	}
	return nil
}

func (d *Database) GetDB() *sqlx.DB {
	return d.db
}

func (d *Database) Path() string {
	return d.path
}

func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close %s: %w", d.path, err)
	}
	d.logger.Info("Database closed", "path", d.path)
	return nil
}
