package capability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/proctor/internal/adapters/capability"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCapability(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unloaded capability", t, func() {
		c := capability.New[string]("faces")
		_, ok := c.Get()
		So(ok, ShouldBeFalse)
		So(c.State(), ShouldEqual, capability.Unloaded)
		So(c.Name(), ShouldEqual, "faces")

		Convey("When the loader succeeds", func() {
			release := make(chan struct{})
			err := c.Load(ctx, func(context.Context) (string, error) {
				<-release
				return "model", nil
			})
			So(err, ShouldBeNil)
			So(c.State(), ShouldEqual, capability.Loading)
			_, ok := c.Get()
			So(ok, ShouldBeFalse)
			close(release)

			Convey("Then it becomes ready", func() {
				select {
				case <-c.Done():
				case <-time.After(time.Second):
				}
				v, ok := c.Get()
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "model")
				So(c.State().String(), ShouldEqual, "ready")
			})

			Convey("Then a second load is rejected", func() {
				So(errors.Is(c.Load(ctx, nil), capability.ErrAlreadyLoading), ShouldBeTrue)
			})
		})

		Convey("When the loader fails", func() {
			boom := errors.New("no model")
			So(c.Load(ctx, func(context.Context) (string, error) { return "", boom }), ShouldBeNil)
			<-c.Done()

			Convey("Then the capability reports failure", func() {
				So(c.State(), ShouldEqual, capability.Failed)
				So(c.Err(), ShouldEqual, boom)
				_, ok := c.Get()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When set directly", func() {
			c.Set("direct")
			v, ok := c.Get()
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "direct")
		})
	})
}
