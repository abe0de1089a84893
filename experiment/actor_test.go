package experiment

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"banditserve/accountant"
	"banditserve/ids"
	"banditserve/policy"
	"banditserve/statestore"
)

func newTestActor(t *testing.T, cfg policy.Config) (*Actor, context.CancelFunc, ids.ExperimentID) {
	t.Helper()
	dir, err := os.MkdirTemp("", "experiment-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := statestore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	id := ids.NewExperimentID()
	a := New(id, store, accountant.NoOp{}, cfg, time.Hour, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	return a, cancel, id
}

func TestActorDrawUpdateLifecycle(t *testing.T) {
	Convey("Given a running Experiment actor with an EpsilonGreedy policy", t, func() {
		a, cancel, _ := newTestActor(t, policy.Config{Tag: policy.TagEpsilonGreedy, Epsilon: 0})
		defer cancel()
		ctx := context.Background()

		armID, err := a.AddArm(ctx, 0, 0)
		So(err, ShouldBeNil)

		Convey("Update then Stats reflects the recorded pull", func() {
			So(a.Update(ctx, armID, 1.0, 0), ShouldBeNil)
			stats, err := a.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats[armID].Pulls, ShouldEqual, 1)
			So(stats[armID].MeanReward, ShouldEqual, 1.0)
		})

		Convey("Draw returns the only active arm", func() {
			res, err := a.Draw(ctx)
			So(err, ShouldBeNil)
			So(res.Err, ShouldBeNil)
			So(res.ArmID, ShouldEqual, armID)
		})

		Convey("Update on an unknown arm returns NotFound", func() {
			err := a.Update(ctx, policy.ArmId(999), 1.0, 0)
			So(err, ShouldEqual, policy.ErrNotFound)
		})

		Convey("Shutdown stops the actor and performs a final checkpoint", func() {
			So(a.Shutdown(ctx), ShouldBeNil)
			select {
			case <-a.Done():
			case <-time.After(time.Second):
				t.Fatal("actor did not stop after Shutdown")
			}
			blob, ok := a.store.Get(a.ID())
			So(ok, ShouldBeTrue)
			restored, err := policy.Restore(blob)
			So(err, ShouldBeNil)
			So(restored.Stats(), ShouldContainKey, armID)
		})
	})
}

func TestActorRecoversFromSnapshotOnRestart(t *testing.T) {
	Convey("Given an actor that has recorded state and checkpointed", t, func() {
		dir, err := os.MkdirTemp("", "experiment-test-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		store, err := statestore.Open(dir)
		So(err, ShouldBeNil)

		id := ids.NewExperimentID()
		cfg := policy.Config{Tag: policy.TagUCB1}
		a := New(id, store, accountant.NoOp{}, cfg, time.Hour, 16)
		ctx, cancel := context.WithCancel(context.Background())
		go a.Run(ctx)

		armID, err := a.AddArm(ctx, 0, 0)
		So(err, ShouldBeNil)
		So(a.Update(ctx, armID, 1.0, 0), ShouldBeNil)
		So(a.Shutdown(ctx), ShouldBeNil)
		cancel()
		<-a.Done()

		Convey("A new actor for the same id restores the checkpointed state", func() {
			restarted := New(id, store, accountant.NoOp{}, policy.Config{}, time.Hour, 16)
			restartCtx, restartCancel := context.WithCancel(context.Background())
			defer restartCancel()
			go restarted.Run(restartCtx)

			stats, err := restarted.Stats(restartCtx)
			So(err, ShouldBeNil)
			So(stats[armID].Pulls, ShouldEqual, 1)
		})
	})
}
