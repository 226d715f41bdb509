package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"climate-api/internal/config"
	"climate-api/internal/dataset"
	"climate-api/internal/db"
)

func importFiles(ctx context.Context, cfg config.Config, conn *sql.DB, measurementsPath, stationsPath string) error {
	mf, err := os.Open(measurementsPath)
	if err != nil {
		return err
	}
	defer func() { _ = mf.Close() }()

	sf, err := os.Open(stationsPath)
	if err != nil {
		return err
	}
	defer func() { _ = sf.Close() }()

	observations, err := dataset.ReadObservations(mf)
	if err != nil {
		return fmt.Errorf("%s: %w", measurementsPath, err)
	}
	stations, err := dataset.ReadStations(sf)
	if err != nil {
		return fmt.Errorf("%s: %w", stationsPath, err)
	}
	return dataset.Load(ctx, conn, db.PlaceholderFormat(cfg.DBDriver), stations, observations)
}
