package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	ErrFileMissing  = errors.New("database file missing")
	ErrFileReplaced = errors.New("database file replaced")
	ErrFileCorrupt  = errors.New("database file corrupt")
)

const sqliteHeader = "SQLite format 3\x00"

// Check verifies that the file at Path is still the SQLite database the pool
// was opened on. Pooled connections keep the old file open, so without this
// a deleted or overwritten file keeps serving stale pages.
func (d *Database) Check() error {
	want := d.identity.Load()
	if want == nil {
		return nil
	}

	info, err := os.Stat(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileMissing, d.path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", d.path, err)
	}
	if !os.SameFile(*want, info) {
		return fmt.Errorf("%w: %s", ErrFileReplaced, d.path)
	}

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil || string(header) != sqliteHeader {
		return fmt.Errorf("%w: %s", ErrFileCorrupt, d.path)
	}
	return nil
}

// fileConnector opens go-sqlite3 connections and runs the file check before
// a new connection is made and before an idle one is reused.
type fileConnector struct {
	dsn    string
	driver *sqlite3.SQLiteDriver
	check  func() error
}

func (c *fileConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &checkedConn{SQLiteConn: conn.(*sqlite3.SQLiteConn), check: c.check}, nil
}

func (c *fileConnector) Driver() driver.Driver {
	return c.driver
}

type checkedConn struct {
	*sqlite3.SQLiteConn
	check func() error
}

// ResetSession is called by database/sql before an idle connection is handed
// out again. ErrBadConn makes the pool discard it and dial a new one, which
// then fails in Connect.
func (c *checkedConn) ResetSession(ctx context.Context) error {
	if err := c.check(); err != nil {
		return driver.ErrBadConn
	}
	return nil
}
