package policy

// ArmId is a small dense integer, assigned 0-based and never reused within
// the lifetime of an experiment, including across restarts.
type ArmId uint32

// ArmState is the per-arm record every policy maintains. Policy-specific
// interpretation (UCB1's mean, ThompsonBeta's Beta(alpha, beta)) is derived
// entirely from CumulativeReward and Count, per spec.
type ArmState struct {
	CumulativeReward float64 `json:"cumulative_reward"`
	Count            uint64  `json:"count"`
	IsActive         bool    `json:"is_active"`
}

// MeanReward is cumulative_reward / max(count, 1), matching invariant #1.
func (a ArmState) MeanReward() float64 {
	if a.Count == 0 {
		return a.CumulativeReward
	}
	return a.CumulativeReward / float64(a.Count)
}

// ArmStatsView is the read-only projection returned by Stats and serialized
// for GET /v1/{id}/stats.
type ArmStatsView struct {
	Pulls      uint64  `json:"pulls"`
	MeanReward float64 `json:"mean_reward"`
	IsActive   bool    `json:"is_active"`
}
