package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	service "github.com/okian/proctor/internal/app"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/types"
	"github.com/okian/proctor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func event(msg string) types.EventInput {
	return types.EventInput{SessionID: "s-1", Kind: model.KindVideo, Message: msg}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithCapacity(10))
		defer svc.Stop()

		Convey("When starting the service twice", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is marked as started and the hub runs", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["capacity"], ShouldEqual, 10)
				So(svc.Hub().Running(), ShouldBeTrue)
			})

			Convey("And stopping it keeps stored events", func() {
				_, err := svc.Record(ctx, event("a"))
				So(err, ShouldBeNil)
				svc.Stop()
				So(svc.GetStats()["started"], ShouldBeFalse)
				So(svc.Hub().Running(), ShouldBeFalse)
				So(svc.Status(ctx).Total, ShouldEqual, 1)
			})

			Convey("And it can be stopped and started again", func() {
				svc.Stop()
				So(svc.Start(ctx), ShouldBeNil)
				deadline := time.Now().Add(2 * time.Second)
				for !svc.Hub().Running() && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				So(svc.Hub().Running(), ShouldBeTrue)

				done := make(chan struct{})
				go func() {
					svc.Stop()
					close(done)
				}()
				select {
				case <-done:
				case <-time.After(2 * time.Second):
				}
				So(svc.GetStats()["started"], ShouldBeFalse)
				So(svc.Hub().Running(), ShouldBeFalse)
			})
		})
	})
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	Convey("Given a service with a fixed clock", t, func() {
		svc := service.New(service.WithClock(func() time.Time { return fixed }))

		Convey("When an event without severity or timestamp is recorded", func() {
			rec, err := svc.Record(ctx, event("Looking away"))

			Convey("Then defaults are applied and an id assigned", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, 1)
				So(rec.Severity, ShouldEqual, model.SeverityInfo)
				So(rec.TS.Equal(fixed), ShouldBeTrue)
			})
		})

		Convey("When an event has an empty session id and message", func() {
			rec, err := svc.Record(ctx, types.EventInput{Kind: model.KindSystem})

			Convey("Then it is stored as given", func() {
				So(err, ShouldBeNil)
				So(rec.SessionID, ShouldBeEmpty)
				So(rec.Message, ShouldBeEmpty)
				So(svc.Status(ctx).Total, ShouldEqual, 1)
			})
		})

		Convey("When invalid events are recorded", func() {
			bad := []types.EventInput{
				{SessionID: "s", Kind: "keyboard", Message: "m"},
				{SessionID: "s", Message: "m"},
				{SessionID: "s", Kind: model.KindAudio, Severity: "fatal", Message: "m"},
			}

			Convey("Then each is rejected", func() {
				for _, in := range bad {
					_, err := svc.Record(ctx, in)
					So(errors.Is(err, service.ErrInvalidEvent), ShouldBeTrue)
				}
				So(svc.Status(ctx).Total, ShouldEqual, 0)
			})
		})
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty service", t, func() {
		svc := service.New()

		Convey("Then listing returns nothing", func() {
			out, err := svc.List(ctx, 50)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})

		Convey("When five events are recorded", func() {
			for i := 1; i <= 5; i++ {
				_, err := svc.Record(ctx, event(fmt.Sprintf("e%d", i)))
				So(err, ShouldBeNil)
			}

			Convey("Then a limit of two returns the newest two oldest first", func() {
				out, _ := svc.List(ctx, 2)
				So(len(out), ShouldEqual, 2)
				So(out[0].Message, ShouldEqual, "e4")
				So(out[1].Message, ShouldEqual, "e5")
			})

			Convey("Then a zero or negative limit returns one", func() {
				out, _ := svc.List(ctx, 0)
				So(len(out), ShouldEqual, 1)
				out, _ = svc.List(ctx, -3)
				So(len(out), ShouldEqual, 1)
				So(out[0].Message, ShouldEqual, "e5")
			})

			Convey("Then a large limit returns everything", func() {
				out, _ := svc.List(ctx, 1000)
				So(len(out), ShouldEqual, 5)
			})
		})
	})
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()

	Convey("Given recorded events of mixed kinds", t, func() {
		svc := service.New()
		_, _ = svc.Record(ctx, types.EventInput{SessionID: "s", Kind: model.KindAudio, Message: "Speech detected"})
		last, _ := svc.Record(ctx, types.EventInput{SessionID: "s", Kind: model.KindSystem, Severity: model.SeverityError, Message: "Camera error"})

		Convey("Then status aggregates them", func() {
			st := svc.Status(ctx)
			So(st.Total, ShouldEqual, 2)
			So(st.BySeverity, ShouldResemble, map[string]int{"info": 1, "warn": 0, "error": 1})
			So(st.ByKind, ShouldResemble, map[string]int{"video": 0, "audio": 1, "system": 1})
			So(st.Latest.Equal(last.TS), ShouldBeTrue)
		})
	})
}
