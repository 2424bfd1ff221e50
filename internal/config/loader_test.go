package config_test

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/podium-gg/podium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	for _, key := range []string{
		"PODIUM_CONFIG",
		"PODIUM_ADDR",
		"PODIUM_LOG_LEVEL",
		"PODIUM_QUEUE_SIZE",
		"PODIUM_WORKER_COUNT",
		"PODIUM_MAX_SCORE",
		"PODIUM_RATE_LIMIT_PER_HOUR",
		"PODIUM_TIMEZONE",
		"PODIUM_ANTI_CHEAT_FAIL_MODE",
		"PODIUM_KAFKA__TOPIC",
		"PODIUM_REDIS__ADDR",
	} {
		_ = os.Unsetenv(key)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 65536)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.MaxScore, convey.ShouldEqual, 1_000_000_000)
				convey.So(cfg.RateLimitPerHour, convey.ShouldEqual, 100)
				convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
				convey.So(cfg.Windows, convey.ShouldResemble, []string{"daily", "weekly"})
				convey.So(cfg.AntiCheatFailMode, convey.ShouldEqual, "closed")
				convey.So(cfg.Kafka.Topic, convey.ShouldEqual, "score-submissions")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PODIUM_ADDR", ":8080")
			_ = os.Setenv("PODIUM_RATE_LIMIT_PER_HOUR", "25")
			_ = os.Setenv("PODIUM_KAFKA__TOPIC", "scores-prod")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RateLimitPerHour, convey.ShouldEqual, 25)
				convey.So(cfg.Kafka.Topic, convey.ShouldEqual, "scores-prod")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 65536)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars()

			content := []byte("addr: \":7070\"\nretention_days: 3\nwindows:\n  - daily\n  - monthly\nredis:\n  addr: \"localhost:6379\"\n")
			path := writeTempConfig(t, content)
			_ = os.Setenv("PODIUM_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then file values layer over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RetentionDays, convey.ShouldEqual, 3)
				convey.So(cfg.Windows, convey.ShouldResemble, []string{"daily", "monthly"})
				convey.So(cfg.Redis.Addr, convey.ShouldEqual, "localhost:6379")
			})

			convey.Convey("And env vars still win over the file", func() {
				_ = os.Setenv("PODIUM_ADDR", ":6060")

				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.RetentionDays, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the config is invalid", func() {
			defer clearConfigEnvVars()

			convey.Convey("An unknown timezone is rejected", func() {
				clearConfigEnvVars()
				_ = os.Setenv("PODIUM_TIMEZONE", "Mars/Olympus")

				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "timezone")
			})

			convey.Convey("An unknown window kind is rejected", func() {
				clearConfigEnvVars()
				content := []byte("windows:\n  - hourly\n")
				_ = os.Setenv("PODIUM_CONFIG", writeTempConfig(t, content))

				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "window")
			})

			convey.Convey("An unknown fail mode is rejected", func() {
				clearConfigEnvVars()
				_ = os.Setenv("PODIUM_ANTI_CHEAT_FAIL_MODE", "maybe")

				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "fail_mode")
			})
		})
	})
}

func TestConfigHelpers(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("Then duration helpers convert their fields", func() {
			convey.So(cfg.Retention(), convey.ShouldEqual, 7*24*time.Hour)
			convey.So(cfg.SweepInterval(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.AntiCheatTimeout(), convey.ShouldEqual, 250*time.Millisecond)
		})

		convey.Convey("Then typed window kinds mirror the string config", func() {
			kinds := cfg.WindowKinds()
			convey.So(kinds, convey.ShouldHaveLength, 2)
			convey.So(string(kinds[0]), convey.ShouldEqual, "daily")
		})

		convey.Convey("Then the location resolves", func() {
			convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
		})
	})
}

func writeTempConfig(t *testing.T, content []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "podium-*.yaml")
	if err != nil {
		t.Fatalf("temp config: %v", err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close config: %v", err)
	}
	return f.Name()
}
