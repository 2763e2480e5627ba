package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opengolfcoach/bridge/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	Convey("Given no overrides", t, func() {
		cfg, err := config.Load(ctx)

		Convey("Then loading yields a valid default configuration", func() {
			So(err, ShouldBeNil)
			So(cfg.ListenAddr(), ShouldEqual, "0.0.0.0:921")
			So(cfg.GameID, ShouldEqual, "OpenGolfCoach")
			So(cfg.SessionPolicy, ShouldEqual, "reject")
			So(cfg.UnitSystem, ShouldEqual, "imperial")
			So(cfg.DisplayURL(), ShouldEqual, "ws://localhost:4455")
			So(cfg.CalculatorAddr(), ShouldEqual, "localhost:9210")
			So(cfg.HandshakeTimeout, ShouldEqual, 10*time.Second)
			So(cfg.QueueSize, ShouldEqual, 64)
			So(cfg.HistoryPath, ShouldBeEmpty)
			So(cfg.NATSURL, ShouldBeEmpty)
		})
	})
}

func TestLoadOverrides(t *testing.T) {
	ctx := context.Background()

	Convey("Given environment overrides", t, func() {
		t.Setenv("BRIDGE_LISTEN_PORT", "2483")
		t.Setenv("BRIDGE_UNIT_SYSTEM", "metric")
		t.Setenv("BRIDGE_SESSION_POLICY", "replace")
		t.Setenv("BRIDGE_DISPLAY_PASSWORD", "hunter2")

		cfg, err := config.Load(ctx)

		Convey("Then they take effect over the defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.ListenPort, ShouldEqual, 2483)
			So(cfg.UnitSystem, ShouldEqual, "metric")
			So(cfg.SessionPolicy, ShouldEqual, "replace")
			So(cfg.DisplayPassword, ShouldEqual, "hunter2")
			So(cfg.GameID, ShouldEqual, "OpenGolfCoach")
		})
	})

	Convey("Given a YAML configuration file", t, func() {
		path := filepath.Join(t.TempDir(), "bridge.yaml")
		yaml := "listen_port: 3000\nscene: Overlay\nenabled_data_points:\n  - ball_speed\n  - carry\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
		t.Setenv("BRIDGE_CONFIG", path)

		Convey("When only the file is set", func() {
			cfg, err := config.Load(ctx)

			Convey("Then file values override defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.ListenPort, ShouldEqual, 3000)
				So(cfg.Scene, ShouldEqual, "Overlay")
				So(cfg.EnabledDataPoints, ShouldResemble, []string{"ball_speed", "carry"})
			})
		})

		Convey("When the environment disagrees with the file", func() {
			t.Setenv("BRIDGE_LISTEN_PORT", "4000")
			cfg, err := config.Load(ctx)

			Convey("Then the environment wins", func() {
				So(err, ShouldBeNil)
				So(cfg.ListenPort, ShouldEqual, 4000)
			})
		})
	})

	Convey("Given a missing configuration file", t, func() {
		t.Setenv("BRIDGE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := config.Load(ctx)

		Convey("Then loading fails with a load error", func() {
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a default configuration", t, func() {
		cfg := config.New()

		Convey("Then it validates", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("When the listen port is out of range", func() {
			cfg.ListenPort = 0
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the session policy is unknown", func() {
			cfg.SessionPolicy = "queue"
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the unit system is unknown", func() {
			cfg.UnitSystem = "nautical"
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the queue size is non-positive", func() {
			cfg.QueueSize = 0
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When an enabled data point id is unknown", func() {
			cfg.EnabledDataPoints = []string{"ball_speed", "swing_thoughts"}
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When enabled data points are all known", func() {
			cfg.EnabledDataPoints = []string{"ball_speed", "carry", "shot_name"}
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}
