package stream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/proctor/internal/adapters/http/stream"
	. "github.com/smartystreets/goconvey/convey"
)

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitClients(h *stream.Hub, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub(t *testing.T) {
	Convey("Given a running hub behind an HTTP server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		hub := stream.NewHub(stream.WithBuffer(8))
		go hub.Run(ctx)
		for !hub.Running() {
			time.Sleep(time.Millisecond)
		}
		srv := httptest.NewServer(stream.Handler(hub, []string{"http://localhost:5173"}))
		defer srv.Close()

		Convey("When a client subscribes and a record is published", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			So(waitClients(hub, 1), ShouldBeTrue)

			So(hub.Publish(ctx, map[string]any{"id": 1, "message": "hello"}), ShouldBeNil)

			Convey("Then the client receives it as JSON", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				var got map[string]any
				So(json.Unmarshal(data, &got), ShouldBeNil)
				So(got["message"], ShouldEqual, "hello")
			})
		})

		Convey("When a client disconnects", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
			So(err, ShouldBeNil)
			So(waitClients(hub, 1), ShouldBeTrue)
			_ = conn.Close()

			Convey("Then the hub forgets it", func() {
				So(waitClients(hub, 0), ShouldBeTrue)
			})
		})

		Convey("When a foreign origin dials", func() {
			header := http.Header{}
			header.Set("Origin", "http://evil.example")
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)

			Convey("Then the upgrade is refused", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When the hub stops", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			So(waitClients(hub, 1), ShouldBeTrue)
			cancel()
			<-hub.Done()

			Convey("Then clients are closed and new subscriptions are refused", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, _, err := conn.ReadMessage()
				So(err, ShouldNotBeNil)

				_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
				So(err, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			})

			Convey("And running it again accepts and serves new clients", func() {
				restartCtx, stop := context.WithCancel(context.Background())
				defer stop()
				go hub.Run(restartCtx)
				for !hub.Running() {
					time.Sleep(time.Millisecond)
				}

				again, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
				So(err, ShouldBeNil)
				defer again.Close()
				So(waitClients(hub, 1), ShouldBeTrue)
				So(hub.Publish(restartCtx, map[string]any{"message": "back"}), ShouldBeNil)

				_ = again.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := again.ReadMessage()
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "back")

				stop()
				select {
				case <-hub.Done():
				case <-time.After(2 * time.Second):
				}
				So(hub.Running(), ShouldBeFalse)
			})
		})
	})
}
