// Package testkit builds populated observation stores for tests.
package testkit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"climate-api/internal/config"
	"climate-api/internal/dataset"
	"climate-api/internal/db"
	"climate-api/internal/db/migrate"
	"climate-api/internal/modules/climate/types"
)

// Obs is shorthand for building an observation fixture.
func Obs(station, date string, prcp *float64, tobs float64) types.Observation {
	return types.Observation{Station: station, Date: date, Precipitation: prcp, Temperature: tobs}
}

func Ptr(v float64) *float64 { return &v }

// StoreConfig returns the config of a fresh on-disk sqlite store that has
// been migrated and loaded with the given rows. The returned config opens
// the store read-only.
func StoreConfig(t *testing.T, stations []types.Station, observations []types.Observation) config.Config {
	t.Helper()

	cfg := config.Config{
		DBDriver:       config.DriverSQLite3,
		SQLitePath:     filepath.Join(t.TempDir(), "hawaii.sqlite"),
		DBMaxOpenConns: 1,
	}
	ctx := context.Background()

	rw, err := db.Open(cfg, nil)
	if err != nil {
		t.Fatalf("testkit: open read-write store: %v", err)
	}
	defer func() {
		if err := db.Close(rw); err != nil {
			t.Errorf("testkit: close read-write store: %v", err)
		}
	}()
	if err := migrate.Up(ctx, rw, cfg.DBDriver); err != nil {
		t.Fatalf("testkit: migrate: %v", err)
	}
	if err := dataset.Load(ctx, rw, sq.Question, stations, observations); err != nil {
		t.Fatalf("testkit: load: %v", err)
	}

	cfg.DBReadOnly = true
	cfg.DBMaxOpenConns = 4
	cfg.DBMaxIdleConns = 4
	return cfg
}

// NewStore is StoreConfig followed by db.Open; the handle is closed when
// the test ends.
func NewStore(t *testing.T, stations []types.Station, observations []types.Observation) *sql.DB {
	t.Helper()
	cfg := StoreConfig(t, stations, observations)
	conn, err := db.Open(cfg, nil)
	if err != nil {
		t.Fatalf("testkit: open read-only store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(conn); err != nil {
			t.Errorf("testkit: close store: %v", err)
		}
	})
	return conn
}

// Stations builds station fixtures from bare identifiers.
func Stations(ids ...string) []types.Station {
	out := make([]types.Station, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Station{ID: id, Name: id + " station"})
	}
	return out
}
