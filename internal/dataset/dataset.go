// Package dataset loads the Hawaii station and measurement CSV exports into
// an empty store. The API itself never writes; this is used by the
// climatetool command and by tests that need a populated store.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"climate-api/internal/modules/climate/types"
)

var (
	stationHeader     = []string{"station", "name", "latitude", "longitude", "elevation"}
	measurementHeader = []string{"station", "date", "prcp", "tobs"}
)

// ReadStations parses hawaii_stations.csv.
func ReadStations(r io.Reader) ([]types.Station, error) {
	records, err := readCSV(r, stationHeader)
	if err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	out := make([]types.Station, 0, len(records))
	for i, rec := range records {
		line := i + 2
		lat, err := parseFloat(rec[2])
		if err != nil {
			return nil, fmt.Errorf("stations line %d: latitude: %w", line, err)
		}
		lon, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("stations line %d: longitude: %w", line, err)
		}
		elev, err := parseFloat(rec[4])
		if err != nil {
			return nil, fmt.Errorf("stations line %d: elevation: %w", line, err)
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, fmt.Errorf("stations line %d: empty station id", line)
		}
		out = append(out, types.Station{ID: id, Name: rec[1], Latitude: lat, Longitude: lon, Elevation: elev})
	}
	return out, nil
}

// ReadObservations parses hawaii_measurements.csv. An empty prcp cell is
// a missing reading and becomes NULL.
func ReadObservations(r io.Reader) ([]types.Observation, error) {
	records, err := readCSV(r, measurementHeader)
	if err != nil {
		return nil, fmt.Errorf("measurements: %w", err)
	}
	out := make([]types.Observation, 0, len(records))
	for i, rec := range records {
		line := i + 2
		obs := types.Observation{Station: strings.TrimSpace(rec[0]), Date: strings.TrimSpace(rec[1])}
		if obs.Station == "" || obs.Date == "" {
			return nil, fmt.Errorf("measurements line %d: station and date are required", line)
		}
		if s := strings.TrimSpace(rec[2]); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("measurements line %d: prcp: %w", line, err)
			}
			obs.Precipitation = &v
		}
		obs.Temperature, err = parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("measurements line %d: tobs: %w", line, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// Load inserts stations and observations inside one transaction. Row ids
// are assigned sequentially from 1, in file order.
func Load(ctx context.Context, db *sql.DB, placeholder sq.PlaceholderFormat, stations []types.Station, observations []types.Observation) (err error) {
	if placeholder == nil {
		placeholder = sq.Question
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Error("dataset rollback", "error", rbErr)
			}
		}
	}()

	for i, s := range stations {
		query, args, buildErr := sq.Insert("station").
			Columns("id", "station", "name", "latitude", "longitude", "elevation").
			Values(i+1, s.ID, s.Name, s.Latitude, s.Longitude, s.Elevation).
			PlaceholderFormat(placeholder).
			ToSql()
		if buildErr != nil {
			return fmt.Errorf("build station insert: %w", buildErr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert station %q: %w", s.ID, err)
		}
	}

	for i, o := range observations {
		var prcp any
		if o.Precipitation != nil {
			prcp = *o.Precipitation
		}
		query, args, buildErr := sq.Insert("measurement").
			Columns("id", "station", "date", "prcp", "tobs").
			Values(i+1, o.Station, o.Date, prcp, o.Temperature).
			PlaceholderFormat(placeholder).
			ToSql()
		if buildErr != nil {
			return fmt.Errorf("build measurement insert: %w", buildErr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert measurement %s/%s: %w", o.Station, o.Date, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("dataset loaded", "stations", len(stations), "measurements", len(observations))
	return nil
}

func readCSV(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	got, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(got[i], "\ufeff")), col) {
			return nil, fmt.Errorf("unexpected header %v (want %v)", got, header)
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
