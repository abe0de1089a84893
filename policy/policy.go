// Package policy implements the three bandit policies described in spec
// §4.A: Epsilon-Greedy, UCB1 and Thompson Sampling with Beta priors. Each
// policy is a tagged variant over a common arm table (base), polymorphic
// over the capability set {draw, update, add_arm, remove_arm, disable/enable,
// reset, stats, snapshot, restore}.
package policy

// Policy is the contract every bandit algorithm implements. Implementations
// are not safe for concurrent use; the owning Experiment actor serializes
// all access (spec §5).
type Policy interface {
	Tag() Tag
	Config() Config

	AddArm(initialCount uint64, initialReward float64) ArmId
	RemoveArm(id ArmId) error
	DisableArm(id ArmId) error
	EnableArm(id ArmId) error
	Reset()
	ResetArm(id ArmId, count uint64, cumulativeReward float64) error
	Draw() (ArmId, error)
	Update(id ArmId, reward float64) error
	Stats() map[ArmId]ArmStatsView

	Snapshot() ([]byte, error)
	Restore(blob []byte) error
}

// New constructs a fresh, empty policy for the given config. cfg.Validate()
// should be called by the caller first; New itself rejects an unknown tag
// with ErrBadRequest.
func New(cfg Config) (Policy, error) {
	switch cfg.Tag {
	case TagEpsilonGreedy:
		return newEpsilonGreedy(cfg), nil
	case TagUCB1:
		return newUCB1(cfg), nil
	case TagThompsonBeta:
		return newThompsonBeta(cfg), nil
	default:
		return nil, ErrBadRequest
	}
}

// Restore reconstructs whichever policy the blob's tag names. Used by the
// Experiment actor's Loading state to install state fetched from StateStore.
func Restore(blob []byte) (Policy, error) {
	tag, cfg, b, err := decodeSnapshot(blob)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagEpsilonGreedy:
		return &epsilonGreedy{base: b, cfg: cfg}, nil
	case TagUCB1:
		return &ucb1{base: b, cfg: cfg}, nil
	case TagThompsonBeta:
		return &thompsonBeta{base: b, cfg: cfg}, nil
	default:
		return nil, ErrUnknownSnapshotVersion
	}
}
