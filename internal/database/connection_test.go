package database

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "localhost" {
		t.Errorf("Host = %q, want %q", config.Host, "localhost")
	}
	if config.Port != 5432 {
		t.Errorf("Port = %d, want %d", config.Port, 5432)
	}
	if config.User != "ocrflow" {
		t.Errorf("User = %q, want %q", config.User, "ocrflow")
	}
	if config.Database != "ocrflow" {
		t.Errorf("Database = %q, want %q", config.Database, "ocrflow")
	}
	if config.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, want %q", config.SSLMode, "disable")
	}
	if config.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want %d", config.MaxOpenConns, 25)
	}
	if config.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want %d", config.MaxIdleConns, 5)
	}
	if config.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", config.ConnMaxLifetime, 5*time.Minute)
	}
	if config.ConnMaxIdleTime != 5*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want %v", config.ConnMaxIdleTime, 5*time.Minute)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_PORT", "6543")
	os.Setenv("DB_USER", "ingest")
	os.Setenv("DB_PASSWORD", "secret")
	os.Setenv("DB_NAME", "ingest_db")
	os.Setenv("DB_SSL_MODE", "require")
	defer os.Clearenv()

	config := DefaultConfig()
	config.LoadFromEnv()

	if config.Host != "db.internal" {
		t.Errorf("Host = %q, want %q", config.Host, "db.internal")
	}
	if config.Port != 6543 {
		t.Errorf("Port = %d, want %d", config.Port, 6543)
	}
	if config.User != "ingest" {
		t.Errorf("User = %q, want %q", config.User, "ingest")
	}
	if config.Password != "secret" {
		t.Errorf("Password = %q, want %q", config.Password, "secret")
	}
	if config.Database != "ingest_db" {
		t.Errorf("Database = %q, want %q", config.Database, "ingest_db")
	}
	if config.SSLMode != "require" {
		t.Errorf("SSLMode = %q, want %q", config.SSLMode, "require")
	}
}

func TestLoadFromEnv_InvalidPortKeepsOldValue(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PORT", "not-a-port")
	defer os.Clearenv()

	config := DefaultConfig()
	config.LoadFromEnv()

	if config.Port != 5432 {
		t.Errorf("Port = %d, want unchanged %d", config.Port, 5432)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "missing host",
			mutate:    func(c *Config) { c.Host = "" },
			wantError: "database host is required",
		},
		{
			name:      "invalid port low",
			mutate:    func(c *Config) { c.Port = 0 },
			wantError: "database port must be between 1 and 65535",
		},
		{
			name:      "invalid port high",
			mutate:    func(c *Config) { c.Port = 70000 },
			wantError: "database port must be between 1 and 65535",
		},
		{
			name:      "missing user",
			mutate:    func(c *Config) { c.User = "" },
			wantError: "database user is required",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database = "" },
			wantError: "database name is required",
		},
		{
			name:      "non-positive max open conns",
			mutate:    func(c *Config) { c.MaxOpenConns = 0 },
			wantError: "max open connections must be greater than 0",
		},
		{
			name:      "negative max idle conns",
			mutate:    func(c *Config) { c.MaxIdleConns = -1 },
			wantError: "max idle connections must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() = %q, want substring %q", err.Error(), tt.wantError)
			}
		})
	}
}

func TestConnectionString(t *testing.T) {
	config := DefaultConfig()
	want := "host=localhost port=5432 user=ocrflow dbname=ocrflow sslmode=disable"
	if got := config.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	config.Password = "hunter2"
	want = want + " password=hunter2"
	if got := config.ConnectionString(); got != want {
		t.Errorf("ConnectionString() with password = %q, want %q", got, want)
	}
}

func TestConnect_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Host = ""

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	_, err := Connect(config, logger)
	if err == nil {
		t.Fatal("Connect() with invalid config should return an error")
	}
	if !strings.Contains(err.Error(), "invalid database configuration") {
		t.Errorf("Connect() error = %q, want substring %q", err.Error(), "invalid database configuration")
	}

	// Integration tests should cover the successful-connect scenario
	// against a real Postgres instance.
}
