package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/stdlib"
	sqlite3 "github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"

	"climate-api/internal/config"
)

// Open returns a pooled handle to the observation store. Connections are
// opened read-only unless cfg.DBReadOnly is false, and every statement is
// logged at debug level when cfg.DBLogSQL is set.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	drv, err := driverFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.DBLogSQL {
		connector, err := NewLoggingConnector(drv, dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.DBDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// CheckTables fails unless every named relation can be selected from.
func CheckTables(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		var one int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1").Scan(&one)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check table %s: %w", table, err)
		}
	}
	return nil
}

// PlaceholderFormat returns the bind-parameter style understood by the driver.
func PlaceholderFormat(driverName string) sq.PlaceholderFormat {
	if driverName == config.DriverPgx {
		return sq.Dollar
	}
	return sq.Question
}

func driverFor(name string) (driver.Driver, error) {
	switch name {
	case config.DriverSQLite3:
		return &sqlite3.SQLiteDriver{}, nil
	case config.DriverSQLite:
		return &msqlite.Driver{}, nil
	case config.DriverPgx:
		return stdlib.GetDefaultDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", name)
	}
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DBDriver == config.DriverPgx {
		return postgresDSN(cfg.DBDSN, cfg.DBReadOnly)
	}
	if cfg.DBDSN != "" {
		if !cfg.DBReadOnly {
			return cfg.DBDSN, nil
		}
		return withParams(cfg.DBDSN, sqliteParams(cfg.DBDriver, true)), nil
	}

	path := cfg.SQLitePath
	if path == "" {
		return "", errors.New("sqlite path is empty")
	}

	// A writable store may be created from scratch by the tooling; a
	// read-only one has to exist already.
	if !cfg.DBReadOnly && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	params := sqliteParams(cfg.DBDriver, cfg.DBReadOnly)

	if strings.HasPrefix(path, "file:") {
		return withParams(path, params), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// withParams appends query parameters to a sqlite URI. A bare path is
// turned into a file: URI so the driver parses the parameters.
func withParams(dsn string, params []string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func sqliteParams(driverName string, readOnly bool) []string {
	if driverName == config.DriverSQLite {
		params := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
		if readOnly {
			params = append([]string{"mode=ro"}, append(params, "_pragma=query_only(1)")...)
		}
		return params
	}

	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	if readOnly {
		params = append([]string{"mode=ro"}, append(params, "_query_only=true")...)
	}
	return params
}

func postgresDSN(dsn string, readOnly bool) (string, error) {
	if dsn == "" {
		return "", errors.New("postgres dsn is empty")
	}
	if !readOnly {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres dsn: %w", err)
		}
		q := u.Query()
		q.Set("default_transaction_read_only", "on")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return dsn + " default_transaction_read_only=on", nil
}
