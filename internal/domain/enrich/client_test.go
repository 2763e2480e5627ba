package enrich_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/opengolfcoach/bridge/internal/domain/enrich"
	"github.com/opengolfcoach/bridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// startFakeCalculator serves one request per connection, replying with the
// given line, and reports the decoded request on reqCh.
func startFakeCalculator(t *testing.T, reply string, reqCh chan<- map[string]any) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, err := bufio.NewReader(c).ReadBytes('\n')
				if err != nil {
					return
				}
				if reqCh != nil {
					var req map[string]any
					if json.Unmarshal(line, &req) == nil {
						reqCh <- req
					}
				}
				c.Write([]byte(reply + "\n"))
			}(conn)
		}
	}()
	return ln.Addr()
}

func TestTCPCalculator(t *testing.T) {
	Convey("Given a calculator replying with enriched metrics", t, func() {
		reply := `{"open_golf_coach":{"carry_distance_meters":185.5,"total_distance_meters":196.2,` +
			`"offline_distance_meters":4.2,"peak_height_meters":31.0,"hang_time_seconds":6.2,` +
			`"descent_angle_degrees":42.3,"backspin_rpm":2704.6,"sidespin_rpm":724.6,` +
			`"shot_name":"Fade","shot_rank":"A",` +
			`"estimated_club_speed_meters_per_second":46.7,"estimated_smash_factor":1.50,` +
			`"estimated_attack_angle_degrees":-1.2}}`
		reqCh := make(chan map[string]any, 1)
		addr := startFakeCalculator(t, reply, reqCh)
		calc := enrich.NewTCPCalculator(addr.String())

		Convey("When calculating a canonical record", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			derived, err := calc.Calculate(ctx, model.CanonicalShotRecord{
				BallSpeedMPS: 70.0,
				VLADeg:       12.5,
				HLADeg:       -2.0,
				TotalSpinRPM: 2800.0,
				SpinAxisDeg:  15.0,
			})

			Convey("Then the reply maps onto derived metrics", func() {
				So(err, ShouldBeNil)
				So(derived.CarryM, ShouldEqual, 185.5)
				So(derived.ShotName, ShouldEqual, "Fade")
				So(derived.ShotRank, ShouldEqual, "A")
				So(derived.EstSmashFactor, ShouldEqual, 1.50)
			})

			Convey("Then the request carries the canonical SI fields", func() {
				req := <-reqCh
				So(req["ball_speed_meters_per_second"], ShouldAlmostEqual, 70.0, 0.001)
				So(req["total_spin_rpm"], ShouldAlmostEqual, 2800.0, 0.001)
				_, hasClub := req["club_speed_meters_per_second"]
				So(hasClub, ShouldBeFalse)
			})
		})
	})

	Convey("Given a calculator replying with garbage", t, func() {
		addr := startFakeCalculator(t, "not json at all", nil)
		calc := enrich.NewTCPCalculator(addr.String())

		Convey("Then the error wraps the calculator sentinel", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := calc.Calculate(ctx, model.CanonicalShotRecord{BallSpeedMPS: 70})
			So(errors.Is(err, enrich.ErrCalculator), ShouldBeTrue)
		})
	})

	Convey("Given a reply without the derived payload", t, func() {
		addr := startFakeCalculator(t, `{"status":"ok"}`, nil)
		calc := enrich.NewTCPCalculator(addr.String())

		Convey("Then the missing payload is a calculator error", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := calc.Calculate(ctx, model.CanonicalShotRecord{BallSpeedMPS: 70})
			So(errors.Is(err, enrich.ErrCalculator), ShouldBeTrue)
		})
	})

	Convey("Given no calculator at the address", t, func() {
		calc := enrich.NewTCPCalculator("127.0.0.1:1")

		Convey("Then dialing fails with the calculator sentinel", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := calc.Calculate(ctx, model.CanonicalShotRecord{BallSpeedMPS: 70})
			So(errors.Is(err, enrich.ErrCalculator), ShouldBeTrue)
		})
	})
}
