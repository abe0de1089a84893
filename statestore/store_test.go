package statestore

import (
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"banditserve/ids"
	"banditserve/policy"
)

func TestPutGetDeleteRoundTrip(t *testing.T) {
	Convey("Given an empty StateStore directory", t, func() {
		dir, err := os.MkdirTemp("", "statestore-test-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		store, err := Open(dir)
		So(err, ShouldBeNil)

		id := ids.NewExperimentID()
		blob := []byte("not a real snapshot, just bytes")

		Convey("Put then Get returns the same blob", func() {
			store.Put(id, blob)
			got, ok := store.Get(id)
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, blob)
		})

		Convey("Get on an unknown id returns ok=false", func() {
			_, ok := store.Get(ids.NewExperimentID())
			So(ok, ShouldBeFalse)
		})

		Convey("Delete removes the entry, and deleting a missing id is not an error", func() {
			store.Put(id, blob)
			store.Delete(id)
			_, ok := store.Get(id)
			So(ok, ShouldBeFalse)

			store.Delete(ids.NewExperimentID())
		})

		Convey("ListIds reflects current Put/Delete state", func() {
			store.Put(id, blob)
			list := store.ListIds()
			So(list, ShouldContain, id)

			store.Delete(id)
			So(store.ListIds(), ShouldNotContain, id)
		})

		Convey("Clear removes every entry", func() {
			store.Put(id, blob)
			store.Clear()
			So(store.ListIds(), ShouldBeEmpty)
		})
	})
}

func TestReopenRecoversFromDisk(t *testing.T) {
	Convey("Given a StateStore with a committed snapshot", t, func() {
		dir, err := os.MkdirTemp("", "statestore-test-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		store, err := Open(dir)
		So(err, ShouldBeNil)
		id := ids.NewExperimentID()

		// A real snapshot, not arbitrary bytes: Open's recovery scan skips
		// anything that fails its CRC32 trailer check, so an ad hoc blob
		// would never survive the reopen below.
		pol, err := policy.New(policy.Config{Tag: policy.TagUCB1})
		So(err, ShouldBeNil)
		pol.AddArm(0, 0)
		blob, err := pol.Snapshot()
		So(err, ShouldBeNil)
		store.Put(id, blob)

		Convey("Reopening the same directory recovers the snapshot once the disk write lands", func() {
			// give the sharded writer goroutine a chance to flush; in
			// production callers only rely on recovery after a clean
			// shutdown, which always waits for the final checkpoint.
			for i := 0; i < 100; i++ {
				if _, err := os.ReadFile(dir + "/" + id.String() + ".state"); err == nil {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			reopened, err := Open(dir)
			So(err, ShouldBeNil)
			got, ok := reopened.Get(id)
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, blob)
		})
	})
}
