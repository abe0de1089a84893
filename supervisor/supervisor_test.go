package supervisor

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"banditserve/accountant"
	"banditserve/experiment"
	"banditserve/ids"
	"banditserve/policy"
	"banditserve/statestore"
)

func newFactory(t *testing.T, id ids.ExperimentID) Factory {
	t.Helper()
	dir, err := os.MkdirTemp("", "supervisor-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := statestore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	return func() *experiment.Actor {
		return experiment.New(id, store, accountant.NoOp{}, policy.Config{Tag: policy.TagUCB1}, time.Hour, 16)
	}
}

func TestNewSpawnsFirstGenerationSynchronously(t *testing.T) {
	Convey("Given a freshly constructed Supervisor", t, func() {
		id := ids.NewExperimentID()
		var restarted []*experiment.Actor
		sup, first := New(newFactory(t, id), 5, 5*time.Millisecond, func(a *experiment.Actor) {
			restarted = append(restarted, a)
		}, func() {})

		Convey("onRestart has already fired once, with a live actor for the supervised id", func() {
			So(len(restarted), ShouldEqual, 1)
			So(restarted[0], ShouldEqual, first)
			So(first.ID(), ShouldEqual, id)
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done := make(chan struct{})
		go func() {
			sup.Run(ctx, first)
			close(done)
		}()

		Convey("Run exits promptly on an already-canceled context, without restarting", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Run did not exit on canceled context")
			}
			So(sup.RestartCount(), ShouldEqual, 0)
		})
	})
}

func TestStopSuppressesFurtherRestarts(t *testing.T) {
	Convey("Given a running Supervisor that has been told to Stop", t, func() {
		id := ids.NewExperimentID()
		sup, first := New(newFactory(t, id), 5, 5*time.Millisecond, func(*experiment.Actor) {}, func() {})
		sup.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan struct{})
		go func() {
			sup.Run(ctx, first)
			close(done)
		}()

		Convey("Run returns after the first generation's natural termination, without restarting", func() {
			_ = first.Shutdown(context.Background())
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Run did not exit after Stop")
			}
			So(sup.RestartCount(), ShouldEqual, 0)
		})
	})
}
