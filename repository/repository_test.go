package repository

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

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dir, err := os.MkdirTemp("", "repository-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := statestore.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, accountant.NoOp{}, Config{
		CheckpointInterval: time.Hour,
		MailboxCapacity:    16,
		RestartMaxBurst:    5,
		RestartBackoff:     10 * time.Millisecond,
	})
}

func TestCreateListGetDelete(t *testing.T) {
	Convey("Given an empty Repository", t, func() {
		repo := newTestRepo(t)
		ctx := context.Background()

		Convey("Create registers a new experiment reachable via Get and List", func() {
			id, err := repo.Create(policy.Config{Tag: policy.TagUCB1})
			So(err, ShouldBeNil)

			handle, err := repo.Get(id)
			So(err, ShouldBeNil)
			So(handle.Actor(), ShouldNotBeNil)

			list := repo.List()
			So(list, ShouldContainKey, id)
			So(list[id].Type, ShouldEqual, policy.TagUCB1)

			Convey("Delete removes it from Get/List and deletes its snapshot", func() {
				So(repo.Delete(ctx, id), ShouldBeNil)
				_, err := repo.Get(id)
				So(err, ShouldEqual, ErrNotFound)
				So(repo.List(), ShouldNotContainKey, id)
				_, stored := repo.store.Get(id)
				So(stored, ShouldBeFalse)
			})
		})

		Convey("Get on an unregistered id returns NotFound", func() {
			_, err := repo.Get(ids.NewExperimentID())
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Delete on an unregistered id returns NotFound", func() {
			err := repo.Delete(ctx, ids.NewExperimentID())
			So(err, ShouldEqual, ErrNotFound)
		})
	})
}

func TestClearRemovesEverythingAndSurvivesRestart(t *testing.T) {
	Convey("Given a Repository with two experiments", t, func() {
		dir, err := os.MkdirTemp("", "repository-test-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		store, err := statestore.Open(dir)
		So(err, ShouldBeNil)
		repo := New(store, accountant.NoOp{}, Config{
			CheckpointInterval: time.Hour,
			MailboxCapacity:    16,
			RestartMaxBurst:    5,
			RestartBackoff:     10 * time.Millisecond,
		})

		_, err = repo.Create(policy.Config{Tag: policy.TagEpsilonGreedy, Epsilon: 0.1})
		So(err, ShouldBeNil)
		_, err = repo.Create(policy.Config{Tag: policy.TagThompsonBeta})
		So(err, ShouldBeNil)
		So(len(repo.List()), ShouldEqual, 2)

		Convey("Clear empties the repository and on-disk snapshots, so a fresh Startup finds nothing", func() {
			repo.Clear(context.Background())
			So(len(repo.List()), ShouldEqual, 0)

			reopened, err := statestore.Open(dir)
			So(err, ShouldBeNil)
			fresh := New(reopened, accountant.NoOp{}, Config{
				CheckpointInterval: time.Hour,
				MailboxCapacity:    16,
				RestartMaxBurst:    5,
				RestartBackoff:     10 * time.Millisecond,
			})
			fresh.Startup()
			So(len(fresh.List()), ShouldEqual, 0)
		})
	})
}

func TestStartupReloadsPersistedExperiments(t *testing.T) {
	Convey("Given an experiment created and checkpointed before a restart", t, func() {
		dir, err := os.MkdirTemp("", "repository-test-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		store, err := statestore.Open(dir)
		So(err, ShouldBeNil)
		repo := New(store, accountant.NoOp{}, Config{
			CheckpointInterval: time.Hour,
			MailboxCapacity:    16,
			RestartMaxBurst:    5,
			RestartBackoff:     10 * time.Millisecond,
		})
		id, err := repo.Create(policy.Config{Tag: policy.TagUCB1})
		So(err, ShouldBeNil)

		// Wait for the async disk write from the actor's first checkpoint.
		var flushed bool
		for i := 0; i < 100; i++ {
			if _, err := os.Stat(dir + "/" + id.String() + ".state"); err == nil {
				flushed = true
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		So(flushed, ShouldBeTrue)

		Convey("A new Repository's Startup reloads it from StateStore", func() {
			reopened, err := statestore.Open(dir)
			So(err, ShouldBeNil)
			fresh := New(reopened, accountant.NoOp{}, Config{
				CheckpointInterval: time.Hour,
				MailboxCapacity:    16,
				RestartMaxBurst:    5,
				RestartBackoff:     10 * time.Millisecond,
			})
			fresh.Startup()

			handle, err := fresh.Get(id)
			So(err, ShouldBeNil)
			So(handle.Actor(), ShouldNotBeNil)
		})
	})
}
