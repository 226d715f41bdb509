package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"climate-api/internal/modules/climate/types"
)

const (
	measurementTable = "measurement"
	stationTable     = "station"
)

type ClimateRepository interface {
	GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error)
	GetStationIDs(ctx context.Context) ([]string, error)
	GetTemperatureObservationsSince(ctx context.Context, since string) ([]types.TemperatureObservation, error)
	GetTemperatureStats(ctx context.Context, start string) (types.TemperatureStats, error)
	GetTemperatureStatsBetween(ctx context.Context, start string, end string) (types.TemperatureStats, error)
}

type repositoryImpl struct {
	db          *sql.DB
	placeholder sq.PlaceholderFormat
}

// NewRepository returns a repository that checks a dedicated connection out
// of the pool for every call and hands it back before returning.
func NewRepository(db *sql.DB, placeholder sq.PlaceholderFormat) ClimateRepository {
	if placeholder == nil {
		placeholder = sq.Question
	}
	return &repositoryImpl{db: db, placeholder: placeholder}
}

func (r *repositoryImpl) GetPrecipitationSince(ctx context.Context, since string) ([]types.Precipitation, error) {
	query, args, err := sq.Select("date", "prcp").
		From(measurementTable).
		Where(sq.GtOrEq{"date": since}).
		PlaceholderFormat(r.placeholder).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build precipitation query: %w", err)
	}

	out := []types.Precipitation{}
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer closeRows(rows, "precipitation")
		for rows.Next() {
			var date string
			var prcp sql.NullFloat64
			if err := rows.Scan(&date, &prcp); err != nil {
				return err
			}
			out = append(out, types.Precipitation{Date: date, Prcp: nullableFloat(prcp)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetStationIDs(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("station").
		From(stationTable).
		PlaceholderFormat(r.placeholder).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stations query: %w", err)
	}

	out := []string{}
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer closeRows(rows, "stations")
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetTemperatureObservationsSince(ctx context.Context, since string) ([]types.TemperatureObservation, error) {
	query, args, err := sq.Select("date", "tobs").
		From(measurementTable).
		Where(sq.GtOrEq{"date": since}).
		PlaceholderFormat(r.placeholder).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tobs query: %w", err)
	}

	out := []types.TemperatureObservation{}
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer closeRows(rows, "tobs")
		for rows.Next() {
			var date string
			var tobs sql.NullFloat64
			if err := rows.Scan(&date, &tobs); err != nil {
				return err
			}
			out = append(out, types.TemperatureObservation{Date: date, Tobs: nullableFloat(tobs)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query tobs: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetTemperatureStats(ctx context.Context, start string) (types.TemperatureStats, error) {
	return r.temperatureStats(ctx, temperatureStatsBuilder().Where(sq.GtOrEq{"date": start}))
}

func (r *repositoryImpl) GetTemperatureStatsBetween(ctx context.Context, start string, end string) (types.TemperatureStats, error) {
	return r.temperatureStats(ctx, temperatureStatsBuilder().
		Where(sq.GtOrEq{"date": start}).
		Where(sq.LtOrEq{"date": end}))
}

func temperatureStatsBuilder() sq.SelectBuilder {
	return sq.Select("min(tobs)", "avg(tobs)", "max(tobs)").From(measurementTable)
}

func (r *repositoryImpl) temperatureStats(ctx context.Context, builder sq.SelectBuilder) (types.TemperatureStats, error) {
	query, args, err := builder.PlaceholderFormat(r.placeholder).ToSql()
	if err != nil {
		return types.TemperatureStats{}, fmt.Errorf("build temperature stats query: %w", err)
	}

	var minT, avgT, maxT sql.NullFloat64
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, args...).Scan(&minT, &avgT, &maxT)
	})
	if err != nil {
		return types.TemperatureStats{}, fmt.Errorf("query temperature stats: %w", err)
	}
	return types.TemperatureStats{
		Min: nullableFloat(minT),
		Avg: nullableFloat(avgT),
		Max: nullableFloat(maxT),
	}, nil
}

func (r *repositoryImpl) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("release connection", "error", err)
		}
	}()
	return fn(conn)
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}

func nullableFloat(v sql.NullFloat64) *types.Float {
	if !v.Valid {
		return nil
	}
	return types.NewFloat(v.Float64)
}
