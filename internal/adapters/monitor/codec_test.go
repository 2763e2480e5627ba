package monitor_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/opengolfcoach/bridge/internal/adapters/monitor"
	. "github.com/smartystreets/goconvey/convey"
)

const fullShotLine = `{"DeviceID":"GC3-1234","Units":"MPH","ShotNumber":7,"APIversion":"1",` +
	`"BallData":{"Speed":156.6,"VLA":12.5,"HLA":-2.0,"TotalSpin":2800,"SpinAxis":15.0,` +
	`"BackSpin":2704.6,"SideSpin":724.6},` +
	`"ClubData":{"Speed":110.2,"Path":1.4,"FaceToTarget":-0.8,"AngleOfAttack":-1.2},` +
	`"ShotDataOptions":{"ContainsBallData":true,"ContainsClubData":true,"LaunchMonitorIsReady":true,"IsHeartBeat":false}}`

func TestDecodeMessage(t *testing.T) {
	Convey("Given a complete shot message", t, func() {
		frame, kind, err := monitor.DecodeMessage([]byte(fullShotLine))

		Convey("Then it decodes as a shot", func() {
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, monitor.KindShot)
			So(frame.BallSpeed, ShouldEqual, 156.6)
			So(frame.VLA, ShouldEqual, 12.5)
			So(frame.HLA, ShouldEqual, -2.0)
			So(frame.TotalSpin, ShouldEqual, 2800.0)
			So(frame.SpinAxis, ShouldEqual, 15.0)
			So(frame.DeviceID, ShouldEqual, "GC3-1234")
			So(frame.ShotNumber, ShouldEqual, 7)
		})

		Convey("Then optional ball and club fields come through", func() {
			So(*frame.Backspin, ShouldEqual, 2704.6)
			So(*frame.Sidespin, ShouldEqual, 724.6)
			So(*frame.ClubSpeed, ShouldEqual, 110.2)
			So(*frame.ClubPath, ShouldEqual, 1.4)
			So(*frame.FaceToTarget, ShouldEqual, -0.8)
			So(*frame.AngleOfAttack, ShouldEqual, -1.2)
		})

		Convey("Then MPH units mark the frame imperial", func() {
			So(frame.Imperial, ShouldBeTrue)
		})
	})

	Convey("Given unit variants", t, func() {
		line := func(units string) []byte {
			return []byte(`{"Units":"` + units + `","BallData":{"Speed":70,"VLA":12.5,"HLA":-2,"TotalSpin":2800,"SpinAxis":15}}`)
		}

		Convey("Then Yards means imperial", func() {
			frame, _, err := monitor.DecodeMessage(line("Yards"))
			So(err, ShouldBeNil)
			So(frame.Imperial, ShouldBeTrue)
		})

		Convey("Then Meters means metric", func() {
			frame, _, err := monitor.DecodeMessage(line("Meters"))
			So(err, ShouldBeNil)
			So(frame.Imperial, ShouldBeFalse)
		})

		Convey("Then an absent Units field defaults to imperial", func() {
			frame, _, err := monitor.DecodeMessage([]byte(`{"BallData":{"Speed":156.6,"VLA":12.5,"HLA":-2,"TotalSpin":2800,"SpinAxis":15}}`))
			So(err, ShouldBeNil)
			So(frame.Imperial, ShouldBeTrue)
		})
	})

	Convey("Given heartbeat messages", t, func() {
		Convey("Then an explicit heartbeat decodes as one", func() {
			_, kind, err := monitor.DecodeMessage([]byte(`{"ShotDataOptions":{"IsHeartBeat":true}}`))
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, monitor.KindHeartbeat)
		})

		Convey("Then a ready signal without ball data decodes as liveness", func() {
			_, kind, err := monitor.DecodeMessage([]byte(`{"ShotDataOptions":{"LaunchMonitorIsReady":true}}`))
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, monitor.KindHeartbeat)
		})
	})

	Convey("Given malformed messages", t, func() {
		Convey("Then invalid JSON is a protocol error", func() {
			_, _, err := monitor.DecodeMessage([]byte(`{not json`))
			So(errors.Is(err, monitor.ErrProtocol), ShouldBeTrue)
		})

		Convey("Then a message with no ball data is a protocol error", func() {
			_, _, err := monitor.DecodeMessage([]byte(`{"DeviceID":"x"}`))
			So(errors.Is(err, monitor.ErrProtocol), ShouldBeTrue)
		})

		Convey("Then each missing required ball field is a protocol error", func() {
			for _, missing := range []string{"Speed", "VLA", "HLA", "TotalSpin", "SpinAxis"} {
				ball := map[string]float64{
					"Speed": 70, "VLA": 12.5, "HLA": -2, "TotalSpin": 2800, "SpinAxis": 15,
				}
				delete(ball, missing)
				payload, merr := json.Marshal(map[string]any{"BallData": ball})
				So(merr, ShouldBeNil)
				_, _, err := monitor.DecodeMessage(payload)
				So(errors.Is(err, monitor.ErrProtocol), ShouldBeTrue)
			}
		})
	})
}

func TestEncodeResponses(t *testing.T) {
	Convey("Given the outbound protocol messages", t, func() {
		decode := func(b []byte) map[string]any {
			So(b[len(b)-1], ShouldEqual, byte('\n'))
			var m map[string]any
			So(json.Unmarshal(b[:len(b)-1], &m), ShouldBeNil)
			return m
		}

		Convey("Then the greeting announces code 201 and the game id", func() {
			m := decode(monitor.EncodeHandshake("OpenGolfCoach"))
			So(m["Code"], ShouldEqual, 201.0)
			So(m["GameId"], ShouldEqual, "OpenGolfCoach")
		})

		Convey("Then the shot ack announces code 200", func() {
			m := decode(monitor.EncodeShotAck())
			So(m["Code"], ShouldEqual, 200.0)
		})

		Convey("Then the keepalive probe announces code 202", func() {
			m := decode(monitor.EncodeProbe())
			So(m["Code"], ShouldEqual, 202.0)
		})
	})
}
