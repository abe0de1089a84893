package policy

import "sort"

// base holds the bookkeeping common to every policy: the arm table, the
// next-id counter and the RNG. Each concrete policy embeds *base and adds
// its own Draw/Snapshot logic on top.
type base struct {
	arms      map[ArmId]*ArmState
	nextArmID ArmId
	rng       *rng
}

func newBase(seed *uint64) *base {
	return &base{
		arms: make(map[ArmId]*ArmState),
		rng:  newRNG(seed),
	}
}

func (b *base) addArm(initialCount uint64, initialReward float64) ArmId {
	id := b.nextArmID
	b.nextArmID++
	b.arms[id] = &ArmState{
		CumulativeReward: initialReward,
		Count:            initialCount,
		IsActive:         true,
	}
	return id
}

func (b *base) removeArm(id ArmId) error {
	if _, ok := b.arms[id]; !ok {
		return ErrNotFound
	}
	delete(b.arms, id)
	return nil
}

func (b *base) setActive(id ArmId, active bool) error {
	arm, ok := b.arms[id]
	if !ok {
		return ErrNotFound
	}
	arm.IsActive = active
	return nil
}

func (b *base) reset() {
	for _, arm := range b.arms {
		arm.CumulativeReward = 0
		arm.Count = 0
	}
}

func (b *base) resetArm(id ArmId, count uint64, cumulativeReward float64) error {
	arm, ok := b.arms[id]
	if !ok {
		return ErrNotFound
	}
	arm.Count = count
	arm.CumulativeReward = cumulativeReward
	return nil
}

func (b *base) update(id ArmId, reward float64) error {
	arm, ok := b.arms[id]
	if !ok {
		return ErrNotFound
	}
	if !arm.IsActive {
		return ErrArmDisabled
	}
	arm.Count++
	arm.CumulativeReward += reward
	return nil
}

func (b *base) stats() map[ArmId]ArmStatsView {
	out := make(map[ArmId]ArmStatsView, len(b.arms))
	for id, arm := range b.arms {
		out[id] = ArmStatsView{
			Pulls:      arm.Count,
			MeanReward: arm.MeanReward(),
			IsActive:   arm.IsActive,
		}
	}
	return out
}

// activeArmIDsSorted returns the ids of active arms in ascending order, the
// canonical iteration order every draw rule ties its tie-break to.
func (b *base) activeArmIDsSorted() []ArmId {
	var ids []ArmId
	for id, arm := range b.arms {
		if arm.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
