package config

import (
	"log/slog"
	"testing"
	"time"
)

var allEnvKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR",
	"DB_DRIVER", "DB_DSN", "SQLITE_PATH", "DB_READ_ONLY",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_REQUEST_TOPIC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.DBDriver != DriverSQLite3 {
		t.Errorf("DBDriver = %q, want %q", got.DBDriver, DriverSQLite3)
	}
	if got.SQLitePath != "Resources/hawaii.sqlite" {
		t.Errorf("SQLitePath = %q, want Resources/hawaii.sqlite", got.SQLitePath)
	}
	if !got.DBReadOnly {
		t.Error("DBReadOnly = false, want true")
	}
	if got.DBMaxOpenConns != 4 || got.DBMaxIdleConns != 4 {
		t.Errorf("pool = %d/%d, want 4/4", got.DBMaxOpenConns, got.DBMaxIdleConns)
	}
	if got.DBConnMaxLifetime != 0 {
		t.Errorf("DBConnMaxLifetime = %v, want 0", got.DBConnMaxLifetime)
	}
	if got.DBLogSQL {
		t.Error("DBLogSQL = true, want false")
	}
	if got.MQTTBroker != "" {
		t.Errorf("MQTTBroker = %q, want empty", got.MQTTBroker)
	}
	if got.MQTTPort != 1883 {
		t.Errorf("MQTTPort = %d, want 1883", got.MQTTPort)
	}
	if got.MQTTRequestTopic != "climate/api/request" {
		t.Errorf("MQTTRequestTopic = %q", got.MQTTRequestTopic)
	}
}

func TestLoadFromEnv_AppEnv(t *testing.T) {
	tests := []struct {
		name    string
		appEnv  string
		want    string
		wantErr bool
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
		{name: "staging", appEnv: "staging", wantErr: true},
		{name: "uppercase", appEnv: "DEV", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := LoadFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_DBDriver(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{name: "mattn", driver: "sqlite3"},
		{name: "modernc", driver: "sqlite"},
		{name: "pgx with dsn", driver: "pgx", dsn: "postgres://u:p@localhost:5432/climate"},
		{name: "pgx without dsn", driver: "pgx", wantErr: true},
		{name: "unknown", driver: "mysql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DB_DRIVER", tt.driver)
			t.Setenv("DB_DSN", tt.dsn)

			got, err := LoadFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.DBDriver != tt.driver {
				t.Errorf("DBDriver = %q, want %q", got.DBDriver, tt.driver)
			}
			if got.DBDSN != tt.dsn {
				t.Errorf("DBDSN = %q, want %q", got.DBDSN, tt.dsn)
			}
		})
	}
}

func TestLoadFromEnv_DBPool(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DB_MAX_OPEN_CONNS", "8")
		t.Setenv("DB_MAX_IDLE_CONNS", " 2 ")
		t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
		t.Setenv("DB_READ_ONLY", "false")
		t.Setenv("DB_LOG_SQL", "true")

		got, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v, want nil", err)
		}
		if got.DBMaxOpenConns != 8 || got.DBMaxIdleConns != 2 {
			t.Errorf("pool = %d/%d, want 8/2", got.DBMaxOpenConns, got.DBMaxIdleConns)
		}
		if got.DBConnMaxLifetime != 5*time.Minute {
			t.Errorf("DBConnMaxLifetime = %v, want 5m", got.DBConnMaxLifetime)
		}
		if got.DBReadOnly {
			t.Error("DBReadOnly = true, want false")
		}
		if !got.DBLogSQL {
			t.Error("DBLogSQL = false, want true")
		}
	})

	invalid := map[string]string{
		"DB_MAX_OPEN_CONNS":    "many",
		"DB_MAX_IDLE_CONNS":    "1.5",
		"DB_CONN_MAX_LIFETIME": "forever",
		"DB_READ_ONLY":         "maybe",
		"DB_LOG_SQL":           "yes please",
		"MQTT_PORT":            "70000",
	}
	for key, val := range invalid {
		t.Run("invalid "+key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", key, val)
			}
		})
	}
}

func TestLoadFromEnv_MQTT(t *testing.T) {
	clearEnv(t)
	t.Setenv("MQTT_BROKER", " broker.local ")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_CLIENT_ID", "gateway-1")
	t.Setenv("MQTT_REQUEST_TOPIC", "hawaii/requests")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.MQTTBroker != "broker.local" {
		t.Errorf("MQTTBroker = %q, want broker.local", got.MQTTBroker)
	}
	if got.MQTTPort != 8883 {
		t.Errorf("MQTTPort = %d, want 8883", got.MQTTPort)
	}
	if got.MQTTClientID != "gateway-1" {
		t.Errorf("MQTTClientID = %q, want gateway-1", got.MQTTClientID)
	}
	if got.MQTTRequestTopic != "hawaii/requests" {
		t.Errorf("MQTTRequestTopic = %q, want hawaii/requests", got.MQTTRequestTopic)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		t.Run(in, func(t *testing.T) {
			got, err := parseLogLevel(in)
			if err == nil {
				t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
			}
			if got != slog.LevelInfo {
				t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
			}
		})
	}
}
