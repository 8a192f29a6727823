package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrClosed is returned by Conn while the store is offline for a file operation.
var ErrClosed = errors.New("database store is closed")

// Store wraps the relational store. In desktop mode it is a single sqlite
// file that can be taken offline, copied and reopened; in server mode it is a
// postgres pool and all file operations are unavailable.
type Store struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	driver string
	path   string
	url    string
	key    string
	log    *zap.Logger
}

// OpenSQLite opens the sqlite file at path. A non-empty key is sent as the
// SQLCipher passphrase before anything else touches the file.
func OpenSQLite(path, key string, log *zap.Logger) (*Store, error) {
	s := &Store{driver: DriverSQLite, path: path, key: key, log: log}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to the postgres server at url through pgx.
func OpenPostgres(ctx context.Context, url string, log *zap.Logger) (*Store, error) {
	db, err := sqlx.Open(DriverPostgres, url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Database connected", zap.String("driver", DriverPostgres))
	return &Store{db: db, driver: DriverPostgres, url: url, log: log}, nil
}

func (s *Store) open() error {
	db := sqlx.NewDb(sql.OpenDB(newSQLiteConnector(s.path, s.key)), DriverSQLite)
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// between our own connections.
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

// Conn returns the live handle.
func (s *Store) Conn() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Builder returns a squirrel statement builder using the driver's placeholders.
func (s *Store) Builder() sq.StatementBuilderType {
	if s.driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// IsSQLite reports whether the store is file backed.
func (s *Store) IsSQLite() bool { return s.driver == DriverSQLite }

// Path returns the sqlite file path, empty in server mode.
func (s *Store) Path() string { return s.path }

// Close closes the live handle. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Offline closes the store, runs fn with exclusive access to the file and
// reopens it afterwards, whether or not fn succeeded.
func (s *Store) Offline(fn func() error) error {
	if !s.IsSQLite() {
		return fmt.Errorf("file operations are not supported by the %s driver", s.driver)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		s.log.Warn("Closing store before file operation failed", zap.Error(err))
	}

	fnErr := fn()
	if err := s.open(); err != nil {
		if fnErr != nil {
			return fnErr
		}
		return err
	}
	return fnErr
}

// UseKey switches the SQLCipher passphrase used for every new connection
// and reconnects.
func (s *Store) UseKey(key string) error {
	if !s.IsSQLite() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closeLocked(); err != nil {
		s.log.Warn("Closing store before rekey failed", zap.Error(err))
	}
	s.key = key
	return s.open()
}

// Encrypted reports whether the store is opened with a passphrase.
func (s *Store) Encrypted() bool { return s.key != "" }

// Checkpoint forces a TRUNCATE checkpoint so the main file is self-contained.
func (s *Store) Checkpoint(ctx context.Context) error {
	if !s.IsSQLite() {
		return nil
	}
	db, err := s.Conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// CheckIntegrity runs the store's health probe. For sqlite this is
// PRAGMA integrity_check, which must answer a single "ok" row.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	db, err := s.Conn()
	if err != nil {
		return err
	}
	if !s.IsSQLite() {
		var one int
		return db.GetContext(ctx, &one, "SELECT 1")
	}

	var results []string
	if err := db.SelectContext(ctx, &results, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if len(results) == 1 && results[0] == "ok" {
		return nil
	}
	return fmt.Errorf("integrity check failed: %s", strings.Join(results, "; "))
}

// ExecTx runs script inside a single transaction.
func (s *Store) ExecTx(ctx context.Context, script string, args ...interface{}) error {
	db, err := s.Conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsEncrypted reports whether the sqlite file at path cannot be read as a
// plaintext database. A missing file is not encrypted.
func IsEncrypted(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	db := sql.OpenDB(newSQLiteConnector(path, ""))
	defer db.Close()

	var n int
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n)
	if err == nil {
		return false, nil
	}
	if IsNotADatabase(err) {
		return true, nil
	}
	// a damaged plaintext file is left to the health probe
	if isCorrupt(err) {
		return false, nil
	}
	return false, err
}

// IsNotADatabase matches the engine's "file is not a database" signal.
func IsNotADatabase(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrNotADB
}

func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrCorrupt
}

type sqliteConnector struct {
	driver *sqlite3.SQLiteDriver
	dsn    string
}

func newSQLiteConnector(path, key string) *sqliteConnector {
	return &sqliteConnector{
		dsn: "file:" + path,
		driver: &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				// the key has to be the first statement on the connection
				if key != "" {
					if _, err := conn.Exec("PRAGMA key = '"+strings.ReplaceAll(key, "'", "''")+"'", nil); err != nil {
						return err
					}
				}
				for _, pragma := range []string{
					"PRAGMA journal_mode = WAL",
					"PRAGMA foreign_keys = ON",
					"PRAGMA busy_timeout = 5000",
				} {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

func (c *sqliteConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *sqliteConnector) Driver() driver.Driver {
	return c.driver
}
