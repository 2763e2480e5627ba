package service_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	service "github.com/opengolfcoach/bridge/internal/app"
	"github.com/opengolfcoach/bridge/internal/config"
	"github.com/opengolfcoach/bridge/internal/domain/mapper"
	"github.com/opengolfcoach/bridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedCalculator struct{}

func (fixedCalculator) Calculate(_ context.Context, _ model.CanonicalShotRecord) (*model.DerivedMetrics, error) {
	return &model.DerivedMetrics{
		CarryM:      185.5,
		TotalM:      201.2,
		OfflineM:    4.1,
		PeakHeightM: 28.7,
		HangTimeS:   6.2,
		BackspinRPM: 2650.3,
		SidespinRPM: 724.6,
		ShotName:    "Fade",
		ShotRank:    "A",
	}, nil
}

// memoryDisplay satisfies the display surface and records what it is told.
type memoryDisplay struct {
	mu      sync.Mutex
	ensured [][]string
	shots   chan []model.DataPointValue
	stopped bool
}

func newMemoryDisplay() *memoryDisplay {
	return &memoryDisplay{shots: make(chan []model.DataPointValue, 8)}
}

func (d *memoryDisplay) Start(context.Context) {}

func (d *memoryDisplay) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

func (d *memoryDisplay) Connected() bool { return true }

func (d *memoryDisplay) EnsureSources(ids []string) {
	d.mu.Lock()
	d.ensured = append(d.ensured, append([]string(nil), ids...))
	d.mu.Unlock()
}

func (d *memoryDisplay) Publish(values []model.DataPointValue) {
	d.shots <- values
}

func (d *memoryDisplay) ensuredCalls() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]string, len(d.ensured))
	copy(out, d.ensured)
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.ListenHost = "127.0.0.1"
	cfg.ListenPort = 0 // ephemeral, read back via ListenerAddr
	cfg.HistoryPath = filepath.Join(t.TempDir(), "shots.db")
	cfg.HandshakeTimeout = 2 * time.Second
	return cfg
}

func startService(t *testing.T, cfg *config.Config, display *memoryDisplay) *service.Service {
	t.Helper()
	svc := service.New(cfg,
		service.WithCalculator(fixedCalculator{}),
		service.WithDisplay(display),
	)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("starting service: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(stopCtx)
	})
	return svc
}

func sendShot(t *testing.T, addr net.Addr) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dialing bridge: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	greeting, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading greeting: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(greeting, &m); err != nil || m["Code"] != 201.0 {
		t.Fatalf("unexpected greeting %s", greeting)
	}

	shot := `{"ShotNumber":1,"Units":"Meters",` +
		`"BallData":{"Speed":70,"VLA":12.5,"HLA":-2,"TotalSpin":2800,"SpinAxis":15},` +
		`"ShotDataOptions":{"ContainsBallData":true,"LaunchMonitorIsReady":true}}` + "\n"
	if _, err := conn.Write([]byte(shot)); err != nil {
		t.Fatalf("sending shot: %v", err)
	}
	if _, err := reader.ReadBytes('\n'); err != nil {
		t.Fatalf("reading ack: %v", err)
	}
}

func TestServiceEndToEnd(t *testing.T) {
	Convey("Given a running bridge service", t, func() {
		display := newMemoryDisplay()
		svc := startService(t, testConfig(t), display)

		Convey("Then the display sources are registered at startup", func() {
			calls := display.ensuredCalls()
			So(calls, ShouldNotBeEmpty)
			So(calls[0], ShouldContain, "ball_speed")
			So(calls[0], ShouldContain, "carry")
		})

		Convey("Then health probes report the idle bridge", func() {
			So(svc.SessionState(), ShouldEqual, "none")
			So(svc.DisplayConnected(), ShouldBeTrue)
		})

		Convey("When a monitor plays a shot", func() {
			sendShot(t, svc.ListenerAddr())

			var values []model.DataPointValue
			select {
			case values = <-display.shots:
			case <-time.After(5 * time.Second):
				t.Fatal("display never received the shot")
			}

			byID := map[string]string{}
			for _, v := range values {
				byID[v.ID] = v.Text
			}

			Convey("Then the display shows the formatted shot", func() {
				So(byID["ball_speed"], ShouldEqual, "Ball Speed: 156.6 mph")
				So(byID["carry"], ShouldEqual, "Carry: 202.9 yds")
				So(byID["shot_name"], ShouldEqual, "Shot Shape: Fade")
				So(byID["shot_rank"], ShouldEqual, "Grade: A")
			})

			Convey("Then the shot lands in history", func() {
				store := svc.History()
				So(store, ShouldNotBeNil)

				var count int
				for i := 0; i < 100; i++ {
					n, err := store.Count(context.Background())
					So(err, ShouldBeNil)
					if count = n; count > 0 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(count, ShouldEqual, 1)

				shots, err := store.Latest(context.Background(), 1)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 1)
				So(shots[0].ShotName, ShouldEqual, "Fade")
				So(shots[0].DisplayValues["carry"], ShouldEqual, "Carry: 202.9 yds")
			})
		})

		Convey("When presentation settings change between shots", func() {
			settings := svc.Settings()
			settings.UnitSystem = "metric"
			settings.EnabledIDs = []string{"ball_speed", "carry"}
			svc.ApplySettings(settings)

			Convey("Then sources are re-registered for the new set", func() {
				calls := display.ensuredCalls()
				So(calls[len(calls)-1], ShouldResemble, []string{"ball_speed", "carry"})
			})

			Convey("Then the next shot renders metric", func() {
				sendShot(t, svc.ListenerAddr())

				var values []model.DataPointValue
				select {
				case values = <-display.shots:
				case <-time.After(5 * time.Second):
					t.Fatal("display never received the shot")
				}

				So(values, ShouldHaveLength, 2)
				So(values[0].Text, ShouldEqual, "Ball Speed: 70.0 m/s")
				So(values[1].Text, ShouldEqual, "Carry: 185.5 m")
			})
		})
	})

	Convey("Given a service that was stopped", t, func() {
		display := newMemoryDisplay()
		cfg := testConfig(t)
		svc := startService(t, cfg, display)

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(stopCtx)

		Convey("Then it reports stopped state and releases the display", func() {
			So(svc.SessionState(), ShouldNotEqual, "ACTIVE")
			display.mu.Lock()
			stopped := display.stopped
			display.mu.Unlock()
			So(stopped, ShouldBeTrue)
		})
	})
}

func TestSettingsFromConfig(t *testing.T) {
	Convey("Given bridge configuration", t, func() {
		cfg := config.New()

		Convey("When presentation settings are derived", func() {
			settings := service.SettingsFromConfig(cfg)

			Convey("Then defaults carry through", func() {
				So(settings.UnitSystem, ShouldEqual, "imperial")
				So(settings.ShowLabels, ShouldBeTrue)
				So(settings.ShowUnits, ShouldBeTrue)
				So(settings.Placeholder, ShouldEqual, "--")
				So(settings.EnabledIDs, ShouldBeNil)
			})
		})

		Convey("When the placeholder is cleared", func() {
			cfg.Placeholder = ""
			settings := service.SettingsFromConfig(cfg)

			Convey("Then the default placeholder applies", func() {
				So(settings.Placeholder, ShouldEqual, mapper.DefaultPlaceholder)
			})
		})
	})
}
