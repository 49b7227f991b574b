package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/proctor/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxEvents, convey.ShouldEqual, 500)
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 4000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PROCTOR_ADDR", ":8080")
			_ = os.Setenv("PROCTOR_MAX_EVENTS", "100")
			_ = os.Setenv("PROCTOR_MODE", "team")
			_ = os.Setenv("PROCTOR_TEAM_LIMIT", "5")
			_ = os.Setenv("PROCTOR_ALLOWED_ORIGINS", "http://a.test, http://b.test")
			_ = os.Setenv("PROCTOR_FLAGS_PRESENCE", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxEvents, convey.ShouldEqual, 100)
				convey.So(cfg.Mode, convey.ShouldEqual, "team")
				convey.So(cfg.TeamLimit, convey.ShouldEqual, 5)
				convey.So(cfg.AllowedOrigins, convey.ShouldResemble, []string{"http://a.test", "http://b.test"})
				convey.So(cfg.Flags["presence"], convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempFile("proctor-config-*.yaml", `
# collector
addr: ":9090"
max_events: 200
allowed_origins:
  - http://exam.test
mode: team
team_limit: 2
flags:
  gaze: false
cooldown_ms: 2500
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PROCTOR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.MaxEvents, convey.ShouldEqual, 200)
				convey.So(cfg.AllowedOrigins, convey.ShouldResemble, []string{"http://exam.test"})
				convey.So(cfg.TeamLimit, convey.ShouldEqual, 2)
				convey.So(cfg.Flags["gaze"], convey.ShouldBeFalse)
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 2500)
				convey.So(cfg.FrameIntervalMS, convey.ShouldEqual, 16)
			})

			convey.Convey("And environment variables override file values", func() {
				_ = os.Setenv("PROCTOR_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.MaxEvents, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When a .env file is named", func() {
			dotenv := createTempFile("proctor-*.env", "PROCTOR_COLLECTOR_URL=http://collector.test:9080\nPROCTOR_SESSION_ID=exam-42\n")
			defer func() { _ = os.Remove(dotenv) }()
			_ = os.Setenv("PROCTOR_ENV_FILE", dotenv)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CollectorURL, convey.ShouldEqual, "http://collector.test:9080")
				convey.So(cfg.SessionID, convey.ShouldEqual, "exam-42")
			})
		})

		convey.Convey("When the named .env file is missing", func() {
			_ = os.Setenv("PROCTOR_ENV_FILE", "/nonexistent/proctor.env")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempFile("proctor-config-*.yaml", "addr: [unclosed\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PROCTOR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PROCTOR_CONFIG", "/nonexistent/config.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with empty addr", func() {
			tmpFile := createTempFile("proctor-config-*.yaml", "addr: \"\"\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PROCTOR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PROCTOR_MAX_EVENTS", "lots")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the team limit is out of range", func() {
			_ = os.Setenv("PROCTOR_MODE", "team")
			_ = os.Setenv("PROCTOR_TEAM_LIMIT", "12")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "PROCTOR_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
