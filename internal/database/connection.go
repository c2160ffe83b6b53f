// Package database manages Postgres connection pools. The pipeline keeps two
// independently sized *sqlx.DB pools: a foreground pool for the admin
// surface's request-latency-sensitive queries and a background pool the
// worker pool and scheduler draw from for long-running scans and OCR
// bookkeeping.
package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharederrors "github.com/docpipe/ocrflow/pkg/shared/errors"
	"github.com/docpipe/ocrflow/pkg/shared/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// pgxDriverName is the database/sql driver name the pgx stdlib adapter
// registers itself under.
const pgxDriverName = "pgx"

// Config describes a single Postgres connection pool.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the baseline connection configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "ocrflow",
		Database:        "ocrflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overrides c's fields from DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/
// DB_NAME/DB_SSL_MODE. An invalid DB_PORT is ignored, leaving the prior
// value in place.
func (c *Config) LoadFromEnv() {
	if v, ok := lookupEnv("DB_HOST"); ok {
		c.Host = v
	}
	if v, ok := lookupEnv("DB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v, ok := lookupEnv("DB_USER"); ok {
		c.User = v
	}
	if v, ok := lookupEnv("DB_PASSWORD"); ok {
		c.Password = v
	}
	if v, ok := lookupEnv("DB_NAME"); ok {
		c.Database = v
	}
	if v, ok := lookupEnv("DB_SSL_MODE"); ok {
		c.SSLMode = v
	}
}

// Validate checks that c describes a usable pool configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must be non-negative")
	}
	return nil
}

// ConnectionString renders c as a libpq key=value DSN.
func (c *Config) ConnectionString() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		dsn += " password=" + c.Password
	}
	return dsn
}

// DB wraps a single *sqlx.DB pool opened against the pgx stdlib driver.
type DB struct {
	*sqlx.DB
}

// Connect validates config and opens a pool against it using the pgx stdlib
// driver (database/sql compatible, required by sqlx).
func Connect(config *Config, logger *logrus.Logger) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, sharederrors.FailedTo("connect to database", fmt.Errorf("invalid database configuration: %w", err))
	}

	sqlDB, err := sqlx.Connect(pgxDriverName, config.ConnectionString())
	if err != nil {
		return nil, sharederrors.DatabaseError("open connection pool", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	logger.WithFields(logging.DatabaseFields("connect", config.Database).ToLogrus()).
		Info("connected to database pool")

	return &DB{DB: sqlDB}, nil
}

// Pools holds the two independently-sized pools the pipeline runs on: a
// foreground pool for the admin surface and a background pool for the
// worker pool, scheduler, and maintenance loop.
type Pools struct {
	Foreground *DB
	Background *DB
}

// ConnectPools opens both pools from a single base configuration, sizing
// the background pool to backgroundMaxOpenConns (the capacity that
// Worker.MaxConcurrentJobs must stay strictly below).
func ConnectPools(base *Config, backgroundMaxOpenConns int, logger *logrus.Logger) (*Pools, error) {
	fg := *base
	bg := *base
	bg.MaxOpenConns = backgroundMaxOpenConns

	foreground, err := Connect(&fg, logger)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("open foreground pool", "database", base.Database, err)
	}
	background, err := Connect(&bg, logger)
	if err != nil {
		foreground.Close()
		return nil, sharederrors.FailedToWithDetails("open background pool", "database", base.Database, err)
	}
	return &Pools{Foreground: foreground, Background: background}, nil
}

// Close closes both pools. It returns nil, the one error, or, when both
// pools fail to close, a single error combining both messages.
func (p *Pools) Close() error {
	return sharederrors.Chain(p.Foreground.Close(), p.Background.Close())
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
