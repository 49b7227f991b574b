package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/okian/proctor/internal/adapters/http/api"
	"github.com/okian/proctor/internal/adapters/sink"
	app "github.com/okian/proctor/internal/app"
	"github.com/okian/proctor/internal/config"
	"github.com/okian/proctor/internal/session"
	"github.com/smartystreets/goconvey/convey"
)

func collector(ctx context.Context) (*app.Service, *httptest.Server) {
	svc := app.New()
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	return svc, httptest.NewServer(mux)
}

func agentConfig(url, trace string) *config.Config {
	cfg := config.New()
	cfg.CollectorURL = url
	cfg.TracePath = trace
	cfg.SessionID = "exam-1"
	cfg.FrameIntervalMS = 1
	cfg.ObjectIntervalMS = 10
	return cfg
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a collector and a replay trace", t, func() {
		svc, srv := collector(ctx)
		defer srv.Close()

		convey.Convey("When the agent plays the trace to the end", func() {
			var ticks atomic.Int64
			err := run(ctx, agentConfig(srv.URL, "testdata/exam.yaml"), runOptions{
				observe: func(session.TickReport) { ticks.Add(1) },
			})

			convey.Convey("Then admitted events reach the collector", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ticks.Load(), convey.ShouldBeGreaterThan, 0)

				events, err := svc.List(ctx, 500)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(events), convey.ShouldBeGreaterThanOrEqualTo, 3)
				convey.So(events[0].Message, convey.ShouldEqual, "Camera and microphone access granted")
				for _, e := range events {
					convey.So(e.SessionID, convey.ShouldEqual, "exam-1")
				}
				st := svc.Status(ctx)
				convey.So(st.ByKind["audio"], convey.ShouldBeGreaterThanOrEqualTo, 2)
				convey.So(st.ByKind["system"], convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When the run is cancelled mid-session", func() {
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			var ticks atomic.Int64
			tap := sink.NewRecorder()
			err := run(runCtx, agentConfig(srv.URL, "testdata/exam.yaml"), runOptions{
				loop: true,
				tap:  tap,
				observe: func(session.TickReport) {
					if ticks.Add(1) == 40 {
						cancel()
					}
				},
			})

			convey.Convey("Then every emitted record is still delivered", func() {
				convey.So(err, convey.ShouldBeNil)
				emitted := len(tap.Records())
				convey.So(emitted, convey.ShouldBeGreaterThan, 0)
				convey.So(svc.Status(ctx).Total, convey.ShouldEqual, emitted)
			})
		})

		convey.Convey("When capture is denied", func() {
			err := run(ctx, agentConfig(srv.URL, "testdata/denied.yaml"), runOptions{})

			convey.Convey("Then the capture error is returned and still reported", func() {
				convey.So(errors.Is(err, session.ErrCapture), convey.ShouldBeTrue)
				st := svc.Status(ctx)
				convey.So(st.Total, convey.ShouldEqual, 1)
				convey.So(st.BySeverity["error"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When no trace is configured", func() {
			err := run(ctx, agentConfig(srv.URL, ""), runOptions{})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
