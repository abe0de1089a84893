package policy

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEpsilonGreedyDeterministicArgmax(t *testing.T) {
	Convey("Given an EpsilonGreedy policy with epsilon=0 and a seed", t, func() {
		seed := uint64(42)
		p, err := New(Config{Tag: TagEpsilonGreedy, Epsilon: 0, Seed: &seed})
		So(err, ShouldBeNil)

		a0 := p.AddArm(0, 0)
		a1 := p.AddArm(0, 0)
		So(p.Update(a0, 1.0), ShouldBeNil)
		So(p.Update(a0, 1.0), ShouldBeNil)
		So(p.Update(a1, 0.0), ShouldBeNil)

		Convey("Ten consecutive draws all return arm 0", func() {
			for i := 0; i < 10; i++ {
				id, err := p.Draw()
				So(err, ShouldBeNil)
				So(id, ShouldEqual, a0)
			}
		})
	})
}

func TestUCB1ForcesZeroCountExploration(t *testing.T) {
	Convey("Given a UCB1 policy with three fresh arms", t, func() {
		p, err := New(Config{Tag: TagUCB1})
		So(err, ShouldBeNil)
		a0 := p.AddArm(0, 0)
		a1 := p.AddArm(0, 0)
		a2 := p.AddArm(0, 0)

		Convey("Three consecutive draws visit each zero-count arm in id order", func() {
			first, err := p.Draw()
			So(err, ShouldBeNil)
			So(first, ShouldEqual, a0)
			So(p.Update(a0, 0.5), ShouldBeNil)

			second, err := p.Draw()
			So(err, ShouldBeNil)
			So(second, ShouldEqual, a1)
			So(p.Update(a1, 0.5), ShouldBeNil)

			third, err := p.Draw()
			So(err, ShouldBeNil)
			So(third, ShouldEqual, a2)
		})
	})
}

func TestDisabledArmNeverDrawn(t *testing.T) {
	Convey("Given a policy with a single arm", t, func() {
		p, err := New(Config{Tag: TagUCB1})
		So(err, ShouldBeNil)
		a0 := p.AddArm(0, 0)

		Convey("Disabling it makes Draw return NoActiveArms", func() {
			So(p.DisableArm(a0), ShouldBeNil)
			_, err := p.Draw()
			So(err, ShouldEqual, ErrNoActiveArms)

			Convey("Re-enabling it makes Draw return it again", func() {
				So(p.EnableArm(a0), ShouldBeNil)
				id, err := p.Draw()
				So(err, ShouldBeNil)
				So(id, ShouldEqual, a0)
			})
		})
	})
}

func TestUpdateErrors(t *testing.T) {
	Convey("Given a policy with one disabled arm", t, func() {
		p, err := New(Config{Tag: TagEpsilonGreedy, Epsilon: 0.1})
		So(err, ShouldBeNil)
		a0 := p.AddArm(0, 0)
		So(p.DisableArm(a0), ShouldBeNil)

		Convey("Update on a nonexistent arm returns NotFound and leaves state unchanged", func() {
			err := p.Update(ArmId(999), 1.0)
			So(err, ShouldEqual, ErrNotFound)
			So(p.Stats()[a0].Pulls, ShouldEqual, 0)
		})

		Convey("Update on the disabled arm returns ArmDisabled and leaves state unchanged", func() {
			err := p.Update(a0, 1.0)
			So(err, ShouldEqual, ErrArmDisabled)
			So(p.Stats()[a0].Pulls, ShouldEqual, 0)
		})
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	Convey("Given a ThompsonBeta policy with arms and history", t, func() {
		seed := uint64(7)
		p, err := New(Config{Tag: TagThompsonBeta, Seed: &seed})
		So(err, ShouldBeNil)
		a0 := p.AddArm(1, 1)
		a1 := p.AddArm(0, 0)
		So(p.Update(a0, 1.0), ShouldBeNil)
		_, _ = p.Draw()

		Convey("Serialize -> deserialize -> serialize yields a byte-equal snapshot", func() {
			blob1, err := p.Snapshot()
			So(err, ShouldBeNil)

			restored, err := Restore(blob1)
			So(err, ShouldBeNil)

			blob2, err := restored.Snapshot()
			So(err, ShouldBeNil)
			So(blob2, ShouldResemble, blob1)

			Convey("And the restored policy preserves arm state and next_arm_id", func() {
				stats := restored.Stats()
				So(stats[a0].Pulls, ShouldEqual, 2)
				So(stats[a1].Pulls, ShouldEqual, 0)

				newID := restored.AddArm(0, 0)
				So(newID, ShouldEqual, ArmId(2))
			})
		})
	})
}

func TestResetPreservesArmsAndReplayReproducesStats(t *testing.T) {
	Convey("Given a policy with recorded updates", t, func() {
		p, err := New(Config{Tag: TagEpsilonGreedy, Epsilon: 0})
		So(err, ShouldBeNil)
		a0 := p.AddArm(0, 0)
		a1 := p.AddArm(0, 0)
		updates := []struct {
			id     ArmId
			reward float64
		}{
			{a0, 1.0}, {a1, 0.0}, {a0, 0.0}, {a1, 1.0}, {a0, 1.0},
		}
		for _, u := range updates {
			So(p.Update(u.id, u.reward), ShouldBeNil)
		}
		before := p.Stats()

		Convey("Reset zeros counters but keeps arms, and replaying the same updates reproduces stats", func() {
			p.Reset()
			So(len(p.Stats()), ShouldEqual, 2)
			for _, u := range updates {
				So(p.Update(u.id, u.reward), ShouldBeNil)
			}
			after := p.Stats()
			So(after, ShouldResemble, before)
		})
	})
}

func TestAddArmZeroInitialIsValid(t *testing.T) {
	Convey("Given a fresh policy", t, func() {
		p, err := New(Config{Tag: TagUCB1})
		So(err, ShouldBeNil)

		Convey("AddArm with initial_count=0 and initial_reward=0 is valid and drawable", func() {
			id := p.AddArm(0, 0)
			drawn, err := p.Draw()
			So(err, ShouldBeNil)
			So(drawn, ShouldEqual, id)
		})
	})
}
