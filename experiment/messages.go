package experiment

import "banditserve/policy"

// Every message the actor accepts carries its own reply channel (or none,
// for fire-and-forget Checkpoint). This keeps the mailbox a single
// chan any, type-switched in the run loop, while giving each call site a
// precisely typed reply -- the same shape as the teacher's request/reply
// channel plumbing in server/fastview, just generalized from one-way UI
// updates to a full request/reply mailbox.

type pingMsg struct {
	reply chan struct{}
}

type addArmMsg struct {
	initialCount  uint64
	initialReward float64
	reply         chan policy.ArmId
}

type removeArmMsg struct {
	armID policy.ArmId
	reply chan error
}

type setActiveMsg struct {
	armID  policy.ArmId
	active bool
	reply  chan error
}

type resetMsg struct {
	reply chan struct{}
}

type resetArmMsg struct {
	armID            policy.ArmId
	count            uint64
	cumulativeReward float64
	reply            chan error
}

// DrawResult is the reply to Draw: {timestamp_ms, arm_id} or NoActiveArms.
type DrawResult struct {
	ArmID       policy.ArmId
	TimestampMS uint64
	Err         error
}

type drawMsg struct {
	reply chan DrawResult
}

type updateMsg struct {
	armID       policy.ArmId
	reward      float64
	timestampMS uint64
	reply       chan error
}

// BatchEntry is one entry of an UpdateBatch request.
type BatchEntry struct {
	ArmID       policy.ArmId
	Reward      float64
	TimestampMS uint64
}

// BatchEntryResult is the per-entry outcome of an UpdateBatch request; the
// batch as a whole never fails even if individual entries return NotFound
// or ArmDisabled (spec §4.B).
type BatchEntryResult struct {
	ArmID policy.ArmId
	Err   error
}

type updateBatchMsg struct {
	entries []BatchEntry
	reply   chan []BatchEntryResult
}

type statsMsg struct {
	reply chan map[policy.ArmId]policy.ArmStatsView
}

// checkpointMsg is internal-only: the checkpoint ticker injects it into the
// same mailbox as every other message, so a tick is ordered against
// concurrent Draw/Update traffic exactly like any other message (spec §5).
type checkpointMsg struct{}

type shutdownMsg struct {
	reply chan struct{}
}
