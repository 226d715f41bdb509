// Package migrate applies the embedded measurement/station schema.
// Migration files follow goose naming: 00001_name.sql, 00002_other.sql.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"climate-api/internal/config"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const migrationsDir = "sql"

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Up applies every pending migration for the given driver.
func Up(ctx context.Context, db *sql.DB, driverName string) error {
	dialect, err := dialectFor(driverName)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseMu.Unlock()
	}()

	goose.SetBaseFS(sqlFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version reports the latest applied migration version.
func Version(ctx context.Context, db *sql.DB, driverName string) (int64, error) {
	dialect, err := dialectFor(driverName)
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

func dialectFor(driverName string) (string, error) {
	switch driverName {
	case config.DriverSQLite3, config.DriverSQLite:
		return "sqlite3", nil
	case config.DriverPgx:
		return "postgres", nil
	default:
		return "", fmt.Errorf("no migration dialect for driver %q", driverName)
	}
}
