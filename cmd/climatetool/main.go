// Command climatetool prepares an observation store for the API: it applies
// the schema and imports the Hawaii CSV exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"climate-api/internal/config"
	"climate-api/internal/db"
	"climate-api/internal/db/migrate"
	"climate-api/internal/logging"
)

const (
	appName = "climatetool"
	version = "dev"
)

const usage = `usage: %s <command>
  migrate                                  apply pending schema migrations
  version                                  print the applied schema version
  import <measurements.csv> <stations.csv> migrate, then load the CSV exports
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "dotenv error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	// The tool is the only writer.
	cfg.DBReadOnly = false
	slog.SetDefault(logging.New(cfg, version, appName))

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	switch args[0] {
	case "migrate", "version", "import":
	default:
		return fmt.Errorf("unknown command (see %s without arguments)", appName)
	}
	if args[0] == "import" && len(args) != 3 {
		return errors.New("expected <measurements.csv> <stations.csv>")
	}

	conn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	switch args[0] {
	case "migrate":
		if err := migrate.Up(ctx, conn, cfg.DBDriver); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
	case "version":
		v, err := migrate.Version(ctx, conn, cfg.DBDriver)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "schema version %d\n", v)
	case "import":
		if err := migrate.Up(ctx, conn, cfg.DBDriver); err != nil {
			return err
		}
		if err := importFiles(ctx, cfg, conn, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(out, "dataset imported")
	}
	return nil
}
