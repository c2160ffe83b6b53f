package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  admin_port: "8080"
  metrics_port: "9090"

database:
  host: "db.internal"
  port: 5432
  user: "ocrflow"
  name: "ocrflow"
  ssl_mode: "disable"
  max_open_conns: 25
  max_idle_conns: 5

queue:
  max_attempts: 3
  stale_threshold: "10m"
  cleanup_horizon: "168h"
  maintenance_interval: "5m"

worker:
  max_concurrent_jobs: 15
  ocr_timeout: "300s"

scheduler:
  tick_interval: "60s"
  grace_period: "30s"

ingest:
  max_file_size_bytes: 104857600
  batch_size: 1000
  walk_concurrency: 50

logging:
  level: "info"
  format: "json"

notify:
  channel: "file"
  directory: "/var/lib/ocrflow/notifications"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(config).NotTo(BeNil())

				Expect(config.Server.AdminPort).To(Equal("8080"))
				Expect(config.Server.MetricsPort).To(Equal("9090"))

				Expect(config.Database.Host).To(Equal("db.internal"))
				Expect(config.Database.Port).To(Equal(5432))
				Expect(config.Database.MaxOpenConns).To(Equal(25))

				Expect(config.Queue.MaxAttempts).To(Equal(3))
				Expect(config.Queue.StaleThreshold).To(Equal(10 * time.Minute))
				Expect(config.Queue.CleanupHorizon).To(Equal(168 * time.Hour))

				Expect(config.Worker.MaxConcurrentJobs).To(Equal(15))
				Expect(config.Worker.OCRTimeout).To(Equal(300 * time.Second))

				Expect(config.Scheduler.TickInterval).To(Equal(60 * time.Second))
				Expect(config.Scheduler.GracePeriod).To(Equal(30 * time.Second))

				Expect(config.Ingest.MaxFileSizeBytes).To(Equal(int64(104857600)))
				Expect(config.Ingest.BatchSize).To(Equal(1000))

				Expect(config.Logging.Level).To(Equal("info"))
				Expect(config.Logging.Format).To(Equal("json"))

				Expect(config.Notify.Channel).To(Equal("file"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
database:
  host: "localhost"
  name: "ocrflow"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Database.Host).To(Equal("localhost"))
				Expect(config.Worker.MaxConcurrentJobs).To(Equal(15))
				Expect(config.Queue.StaleThreshold).To(Equal(10 * time.Minute))
				Expect(config.Scheduler.TickInterval).To(Equal(60 * time.Second))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  admin_port: "8080"
  invalid_yaml: [
database:
  host: "test"
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has invalid duration formats", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
database:
  host: "localhost"

queue:
  stale_threshold: "not-a-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var config *Config

		BeforeEach(func() {
			config = Defaults()
			config.Database.Host = "localhost"
			config.Database.Name = "ocrflow"
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				err := validate(config)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when database host is missing", func() {
			BeforeEach(func() {
				config.Database.Host = ""
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("database host is required"))
			})
		})

		Context("when max_concurrent_jobs is not positive", func() {
			BeforeEach(func() {
				config.Worker.MaxConcurrentJobs = 0
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("max_concurrent_jobs must be greater than 0"))
			})
		})

		Context("when planner change ratio is out of range", func() {
			BeforeEach(func() {
				config.Scheduler.PlannerChangeRatio = 1.5
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("planner change ratio must be between 0 and 1"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var config *Config

		BeforeEach(func() {
			config = Defaults()
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("DB_HOST", "env-host")
				os.Setenv("DB_PORT", "6543")
				os.Setenv("DB_USER", "env-user")
				os.Setenv("DB_PASSWORD", "secret")
				os.Setenv("DB_NAME", "env-db")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("MAX_CONCURRENT_JOBS", "20")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should load values from environment", func() {
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Database.Host).To(Equal("env-host"))
				Expect(config.Database.Port).To(Equal(6543))
				Expect(config.Database.User).To(Equal("env-user"))
				Expect(config.Database.Password).To(Equal("secret"))
				Expect(config.Database.Name).To(Equal("env-db"))
				Expect(config.Logging.Level).To(Equal("debug"))
				Expect(config.Worker.MaxConcurrentJobs).To(Equal(20))
			})
		})

		Context("when an environment variable holds an invalid integer", func() {
			BeforeEach(func() {
				os.Setenv("DB_PORT", "not-a-port")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should keep the previous value", func() {
				config.Database.Port = 5432
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(config.Database.Port).To(Equal(5432))
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				originalConfig := *config
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(*config).To(Equal(originalConfig))
			})
		})
	})
})
