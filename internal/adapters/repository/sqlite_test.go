package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/opengolfcoach/bridge/internal/adapters/repository"
	"github.com/opengolfcoach/bridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func enrichedShot(n int, at time.Time) *model.EnrichedShotRecord {
	return &model.EnrichedShotRecord{
		Canonical: model.CanonicalShotRecord{
			ID:           fmt.Sprintf("shot-%03d", n),
			ReceivedAt:   at,
			BallSpeedMPS: 70,
			VLADeg:       12.5,
			HLADeg:       -2,
			TotalSpinRPM: 2800,
			SpinAxisDeg:  15,
			ShotNumber:   n,
		},
		Derived: &model.DerivedMetrics{
			CarryM:   185.5,
			TotalM:   201.2,
			ShotName: "Fade",
			ShotRank: "A",
		},
	}
}

func openStore(t *testing.T, opts ...repository.Option) *repository.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shots.db")
	store, err := repository.NewStore(path, opts...)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty shot history", t, func() {
		store := openStore(t)
		now := time.Now().UTC().Truncate(time.Second)

		Convey("When an enriched shot is recorded with its display text", func() {
			values := []model.DataPointValue{
				{ID: "ball_speed", Text: "Ball Speed: 156.6 mph"},
				{ID: "carry", Text: "Carry: 202.9 yds"},
			}
			So(store.Record(ctx, enrichedShot(1, now), values), ShouldBeNil)

			Convey("Then it comes back intact from Latest", func() {
				shots, err := store.Latest(ctx, 10)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 1)

				shot := shots[0]
				So(shot.ID, ShouldEqual, "shot-001")
				So(shot.Degraded, ShouldBeFalse)
				So(shot.BallSpeedMPS, ShouldEqual, 70.0)
				So(shot.CarryM, ShouldEqual, 185.5)
				So(shot.ShotName, ShouldEqual, "Fade")
				So(shot.ShotRank, ShouldEqual, "A")
				So(shot.DisplayValues["ball_speed"], ShouldEqual, "Ball Speed: 156.6 mph")
				So(shot.DisplayValues["carry"], ShouldEqual, "Carry: 202.9 yds")
			})

			Convey("Then Count reflects it", func() {
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a degraded shot is recorded", func() {
			rec := enrichedShot(1, now)
			rec.Derived = nil
			So(store.Record(ctx, rec, nil), ShouldBeNil)

			Convey("Then derived fields come back zero and the flag is set", func() {
				shots, err := store.Latest(ctx, 1)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 1)
				So(shots[0].Degraded, ShouldBeTrue)
				So(shots[0].CarryM, ShouldEqual, 0.0)
				So(shots[0].ShotName, ShouldBeEmpty)
				So(shots[0].DisplayValues, ShouldBeNil)
			})
		})

		Convey("When several shots are recorded", func() {
			for i := 1; i <= 5; i++ {
				at := now.Add(time.Duration(i) * time.Second)
				So(store.Record(ctx, enrichedShot(i, at), nil), ShouldBeNil)
			}

			Convey("Then Latest returns newest first", func() {
				shots, err := store.Latest(ctx, 3)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 3)
				So(shots[0].ID, ShouldEqual, "shot-005")
				So(shots[1].ID, ShouldEqual, "shot-004")
				So(shots[2].ID, ShouldEqual, "shot-003")
			})

			Convey("Then a non-positive limit falls back to the retention bound", func() {
				shots, err := store.Latest(ctx, 0)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 5)
			})
		})
	})

	Convey("Given a history bounded to three shots", t, func() {
		store := openStore(t, repository.WithHistoryLimit(3))
		now := time.Now().UTC().Truncate(time.Second)

		Convey("When more shots than the bound arrive", func() {
			for i := 1; i <= 5; i++ {
				at := now.Add(time.Duration(i) * time.Second)
				So(store.Record(ctx, enrichedShot(i, at), nil), ShouldBeNil)
			}

			Convey("Then only the newest three survive", func() {
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)

				shots, err := store.Latest(ctx, 10)
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 3)
				So(shots[0].ID, ShouldEqual, "shot-005")
				So(shots[2].ID, ShouldEqual, "shot-003")
			})
		})
	})

	Convey("Given a closed store", t, func() {
		store := openStore(t)
		So(store.Close(), ShouldBeNil)

		Convey("When a shot is recorded", func() {
			err := store.Record(ctx, enrichedShot(1, time.Now()), nil)

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, repository.ErrStoreClosed)
			})
		})

		Convey("When it is closed again", func() {
			Convey("Then that is a no-op", func() {
				So(store.Close(), ShouldBeNil)
			})
		})
	})
}
