package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Sentinel errors shared by every store implementation.
var (
	// ErrInvalid marks input the store refuses to persist.
	ErrInvalid = errors.New("invalid input")

	// ErrConflict marks a uniqueness violation such as a duplicate user.
	ErrConflict = errors.New("conflict")
)

// SQLStore implements Store on top of database/sql. It runs against a
// local SQLite file (driver "sqlite") or PostgreSQL (driver "pgx"); all
// queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database with the given driver and DSN and runs
// any pending schema migrations.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}

	if driver == "sqlite" {
		// A single connection keeps :memory: databases coherent and
		// serializes writers on file databases.
		db.SetMaxOpenConns(1)

		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	return Open("sqlite", dbPath)
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order, each in its own transaction.
func (s *SQLStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var currentVersion int
	if err := s.db.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version",
	); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		err := s.withTx(ctx, func(tx *sqlx.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction, committing when fn returns nil.
// Callers must only use tx inside fn: on SQLite the pool holds a single
// connection and a query on s.db would block.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// dbTime normalizes timestamps before they are written. Whole-second UTC
// values keep SQLite's text representation sortable.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// notFound converts sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
