// Package config loads the single tunables struct the pipeline is
// constructed from: a YAML file on disk, overridden by environment
// variables, then validated before any component is built.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharederrors "github.com/docpipe/ocrflow/pkg/shared/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the admin/health HTTP surface.
type ServerConfig struct {
	AdminPort   string `yaml:"admin_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// BackgroundPoolSize is the capacity the worker pool and scheduler
	// draw from; must stay strictly greater than Worker.MaxConcurrentJobs.
	BackgroundPoolSize int `yaml:"background_pool_size"`
}

// QueueConfig configures durable queue behavior.
type QueueConfig struct {
	MaxAttempts         int           `yaml:"max_attempts"`
	StaleThreshold      time.Duration `yaml:"stale_threshold"`
	CleanupHorizon      time.Duration `yaml:"cleanup_horizon"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// WorkerConfig configures the bounded OCR worker pool.
type WorkerConfig struct {
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	OCRTimeout        time.Duration `yaml:"ocr_timeout"`
	DefaultLanguage   string        `yaml:"default_language"`
}

// SchedulerConfig configures the per-source sync scheduler and the smart
// sync planner's decision thresholds.
type SchedulerConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	GracePeriod        time.Duration `yaml:"grace_period"`
	PlannerChangeRatio float64       `yaml:"planner_change_ratio"`
	NewDirThreshold    int           `yaml:"new_dir_threshold"`
	RemoteTimeout       time.Duration `yaml:"remote_timeout"`
	RemoteMaxRetries    int           `yaml:"remote_max_retries"`
}

// IngestConfig configures the ingestion path.
type IngestConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
	BatchSize        int   `yaml:"batch_size"`
	WalkConcurrency  int   `yaml:"walk_concurrency"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotifyConfig selects and configures the notification sink.
type NotifyConfig struct {
	Channel   string `yaml:"channel"` // "file" | "slack" | "none"
	Directory string `yaml:"directory"`
	SlackURL  string `yaml:"slack_webhook_url"`
}

// RedisConfig configures the optional Redis-backed WebDAV capability cache.
// When Addr is empty, the scheduler falls back to an in-process map that
// does not survive a restart.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Config is the single struct every tunable in the pipeline hangs off of.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
	Notify    NotifyConfig    `yaml:"notify"`
	Redis     RedisConfig     `yaml:"redis"`
}

// Defaults returns a Config populated with every tunable named in the
// design notes: max_concurrent_jobs=15, stale threshold=10m, cleanup
// horizon=7d, scheduler tick=60s, scheduler grace=30s, planner change
// ratio=0.30, new-dir threshold=5, ingestor cap=100MiB.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			AdminPort:   "8090",
			MetricsPort: "9090",
		},
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               5432,
			User:               "ocrflow",
			Name:               "ocrflow",
			SSLMode:            "disable",
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnMaxIdleTime:    5 * time.Minute,
			BackgroundPoolSize: 20,
		},
		Queue: QueueConfig{
			MaxAttempts:         3,
			StaleThreshold:      10 * time.Minute,
			CleanupHorizon:      7 * 24 * time.Hour,
			MaintenanceInterval: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: 15,
			OCRTimeout:        300 * time.Second,
			DefaultLanguage:   "eng",
		},
		Scheduler: SchedulerConfig{
			TickInterval:       60 * time.Second,
			GracePeriod:        30 * time.Second,
			PlannerChangeRatio: 0.30,
			NewDirThreshold:    5,
			RemoteTimeout:      30 * time.Second,
			RemoteMaxRetries:   3,
		},
		Ingest: IngestConfig{
			MaxFileSizeBytes: 100 * 1024 * 1024,
			BatchSize:        1000,
			WalkConcurrency:  50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			Channel:   "file",
			Directory: "./notifications",
		},
		Redis: RedisConfig{
			TTL: 12 * time.Hour,
		},
	}
}

// Load reads configFile, merges it over Defaults(), applies environment
// overrides, validates the result, and returns it.
func Load(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, sharederrors.FailedTo("read config file", err)
	}

	config := Defaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, sharederrors.FailedTo("parse config file", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadFromEnv(config *Config) error {
	if v := os.Getenv("DB_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		config.Database.Name = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		config.Database.SSLMode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.MaxConcurrentJobs = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	return nil
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Port < 1 || config.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Worker.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max_concurrent_jobs must be greater than 0")
	}
	if config.Worker.MaxConcurrentJobs >= config.Database.BackgroundPoolSize {
		return fmt.Errorf("max_concurrent_jobs (%d) must be strictly less than background pool size (%d)",
			config.Worker.MaxConcurrentJobs, config.Database.BackgroundPoolSize)
	}
	if config.Scheduler.PlannerChangeRatio < 0 || config.Scheduler.PlannerChangeRatio > 1 {
		return fmt.Errorf("planner change ratio must be between 0 and 1")
	}
	if config.Ingest.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("ingest max file size must be greater than 0")
	}
	return nil
}
