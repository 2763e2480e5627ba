package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opengolfcoach/bridge/internal/adapters/repository"
	"github.com/opengolfcoach/bridge/internal/adapters/status"
	"github.com/opengolfcoach/bridge/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeHistory struct {
	shots []repository.StoredShot
	err   error
	lastN int
}

func (f *fakeHistory) Latest(_ context.Context, n int) ([]repository.StoredShot, error) {
	f.lastN = n
	return f.shots, f.err
}

func serve(s *status.Server, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	s.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given a status server with live probes", t, func() {
		s := status.NewServer(
			status.WithSessionState(func() string { return "ACTIVE" }),
			status.WithDisplayConnected(func() bool { return true }),
		)

		Convey("When health is requested", func() {
			rec := serve(s, http.MethodGet, "/healthz")

			Convey("Then it reports the probe values", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")

				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
				So(body["session_state"], ShouldEqual, "ACTIVE")
				So(body["display_connected"], ShouldEqual, true)
			})
		})
	})
}

func TestShotsEndpoint(t *testing.T) {
	Convey("Given a status server with shot history", t, func() {
		history := &fakeHistory{
			shots: []repository.StoredShot{
				{
					ID:           "shot-002",
					ReceivedAt:   time.Date(2026, 8, 30, 10, 0, 1, 0, time.UTC),
					BallSpeedMPS: 70,
					CarryM:       185.5,
					ShotName:     "Fade",
					DisplayValues: map[string]string{
						"ball_speed": "Ball Speed: 156.6 mph",
					},
				},
				{ID: "shot-001", ReceivedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), Degraded: true},
			},
		}
		s := status.NewServer(status.WithHistory(history))

		Convey("When shots are requested", func() {
			rec := serve(s, http.MethodGet, "/api/shots")

			Convey("Then they come back newest first with display text", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var shots []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &shots), ShouldBeNil)
				So(shots, ShouldHaveLength, 2)
				So(shots[0]["id"], ShouldEqual, "shot-002")
				So(shots[0]["shot_name"], ShouldEqual, "Fade")
				So(shots[1]["degraded"], ShouldEqual, true)

				display := shots[0]["display_values"].(map[string]any)
				So(display["ball_speed"], ShouldEqual, "Ball Speed: 156.6 mph")
			})

			Convey("Then the default limit applies", func() {
				So(history.lastN, ShouldEqual, 20)
			})
		})

		Convey("When a limit is supplied", func() {
			rec := serve(s, http.MethodGet, "/api/shots?limit=5")

			Convey("Then it is forwarded to the history", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(history.lastN, ShouldEqual, 5)
			})
		})

		Convey("When the limit is not a positive integer", func() {
			recText := serve(s, http.MethodGet, "/api/shots?limit=soon")
			recZero := serve(s, http.MethodGet, "/api/shots?limit=0")

			Convey("Then the request is rejected", func() {
				So(recText.Code, ShouldEqual, http.StatusBadRequest)
				So(recZero.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the history backend fails", func() {
			history.err = errors.New("db locked")
			rec := serve(s, http.MethodGet, "/api/shots")

			Convey("Then the failure maps to a server error", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When history is empty", func() {
			history.shots = nil
			rec := serve(s, http.MethodGet, "/api/shots")

			Convey("Then the response is an empty array, not null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldStartWith, "[]")
			})
		})

		Convey("When the method is not GET", func() {
			rec := serve(s, http.MethodPost, "/api/shots")

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})

	Convey("Given a status server without history", t, func() {
		s := status.NewServer()

		Convey("When shots are requested", func() {
			rec := serve(s, http.MethodGet, "/api/shots")

			Convey("Then history reports as disabled", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)

				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, "history_disabled")
			})
		})
	})
}

func TestDataPointsEndpoint(t *testing.T) {
	Convey("Given a status server", t, func() {
		s := status.NewServer()

		Convey("When the data point catalog is requested", func() {
			rec := serve(s, http.MethodGet, "/api/data-points")

			Convey("Then every registered data point is listed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var points []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &points), ShouldBeNil)
				So(points, ShouldHaveLength, registry.Count())
				So(points[0]["id"], ShouldEqual, "ball_speed")
				So(points[0]["label"], ShouldEqual, "Ball Speed")
				So(points[0]["unit_imperial"], ShouldEqual, "mph")
				So(points[0]["default_enabled"], ShouldEqual, true)
			})
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given a status server", t, func() {
		s := status.NewServer()

		Convey("When metrics are scraped", func() {
			rec := serve(s, http.MethodGet, "/metrics")

			Convey("Then the exposition endpoint responds", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
