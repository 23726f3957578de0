package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/keepalive/config"
)

var _ = Describe("Config", func() {
	var tempDir string

	setenv := func(key, value string) {
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(os.Unsetenv, key)
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tempDir)

		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)
	})

	Describe("Load", func() {
		Context("without a config file", func() {
			It("should fall back to defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":8080"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
				Expect(cfg.Keepalive.Interval()).To(Equal(6 * time.Hour))
				Expect(cfg.Keepalive.Timeout()).To(Equal(10 * time.Second))
				Expect(cfg.Keepalive.PingPath).To(Equal("/rest/v1/"))
				Expect(cfg.Keepalive.RunOnStart).To(BeFalse())
				Expect(cfg.Keepalive.TriggerRPS).To(Equal(0.2))
				Expect(cfg.Keepalive.TriggerBurst).To(Equal(3))
				Expect(cfg.Storage.Driver).To(Equal(config.DriverSQLite))
				Expect(cfg.Storage.DSN).To(Equal("keepalive.db"))
				Expect(cfg.Events.RedisAddr).To(BeEmpty())
			})
		})

		Context("with a config file", func() {
			BeforeEach(func() {
				content := `
server:
  address: ":9090"
  environment: "prod"

logging:
  level: "debug"

keepalive:
  interval_hours: 12
  cron_secret: "from-file"
  ping_timeout: "3s"
  run_on_start: true

storage:
  driver: "memory"

events:
  redis_addr: "localhost:6379"
  channel: "cycles"
`
				Expect(os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(content), 0644)).To(Succeed())
			})

			It("should load every section", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":9090"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvProd))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
				Expect(cfg.Keepalive.Interval()).To(Equal(12 * time.Hour))
				Expect(cfg.Keepalive.CronSecret).To(Equal("from-file"))
				Expect(cfg.Keepalive.Timeout()).To(Equal(3 * time.Second))
				Expect(cfg.Keepalive.RunOnStart).To(BeTrue())
				Expect(cfg.Storage.Driver).To(Equal(config.DriverMemory))
				Expect(cfg.Events.RedisAddr).To(Equal("localhost:6379"))
				Expect(cfg.Events.Channel).To(Equal("cycles"))
			})

			It("should let the environment override the file", func() {
				setenv("KEEPALIVE_INTERVAL_HOURS", "0.5")
				setenv("CRON_SECRET", "from-env")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Keepalive.Interval()).To(Equal(30 * time.Minute))
				Expect(cfg.Keepalive.CronSecret).To(Equal("from-env"))
			})
		})

		Context("with environment variables", func() {
			It("should read the storage DSN from DATABASE_URL", func() {
				setenv("STORAGE_DRIVER", "postgres")
				setenv("DATABASE_URL", "postgres://keepalive@localhost/keepalive")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Storage.Driver).To(Equal(config.DriverPostgres))
				Expect(cfg.Storage.DSN).To(Equal("postgres://keepalive@localhost/keepalive"))
			})

			It("should prefer KEEPALIVE_CRON_SECRET", func() {
				setenv("KEEPALIVE_CRON_SECRET", "primary")
				setenv("CRON_SECRET", "fallback")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Keepalive.CronSecret).To(Equal("primary"))
			})

			DescribeTable("should reject invalid values",
				func(key, value string) {
					setenv(key, value)
					_, err := config.Load()
					Expect(err).To(HaveOccurred())
				},
				Entry("negative interval", "KEEPALIVE_INTERVAL_HOURS", "-1"),
				Entry("zero interval", "KEEPALIVE_INTERVAL_HOURS", "0"),
				Entry("interval beyond a year", "KEEPALIVE_INTERVAL_HOURS", "8761"),
				Entry("interval overflowing a duration", "KEEPALIVE_INTERVAL_HOURS", "3e6"),
				Entry("bad timeout", "KEEPALIVE_PING_TIMEOUT", "soon"),
				Entry("negative timeout", "KEEPALIVE_PING_TIMEOUT", "-5s"),
				Entry("zero trigger rate", "KEEPALIVE_TRIGGER_RPS", "0"),
				Entry("bad url pattern", "KEEPALIVE_URL_PATTERN", "(unclosed"),
				Entry("unknown driver", "STORAGE_DRIVER", "mongo"),
				Entry("unknown environment", "SERVER_ENVIRONMENT", "qa"),
				Entry("unknown log level", "LOGGING_LEVEL", "verbose"),
				Entry("bad listen address", "SERVER_ADDRESS", "8080"),
				Entry("bad redis address", "EVENTS_REDIS_ADDR", "redis"),
			)
		})
	})

	Describe("Validate", func() {
		var cfg config.Config

		BeforeEach(func() {
			cfg = config.Config{
				Server:    config.ServerConfig{Address: ":8080", Environment: config.EnvDev},
				Logging:   config.LoggingConfig{Level: config.LogLevelInfo},
				Keepalive: config.KeepaliveConfig{IntervalHours: 6, PingTimeout: "10s", URLPattern: ".*", TriggerRPS: 1, TriggerBurst: 1},
				Storage:   config.StorageConfig{Driver: config.DriverMemory},
			}
		})

		It("should accept a memory store without a DSN", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should accept an interval of exactly one year", func() {
			cfg.Keepalive.IntervalHours = config.MaxIntervalHours
			Expect(cfg.Validate()).To(Succeed())
			Expect(cfg.Keepalive.Interval()).To(Equal(365 * 24 * time.Hour))
		})

		It("should require a DSN for persistent drivers", func() {
			cfg.Storage.Driver = config.DriverSQLite
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should require a channel when Redis is configured", func() {
			cfg.Events.RedisAddr = "localhost:6379"
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Events.Channel = "keepalive:cycles"
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
