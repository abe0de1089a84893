package policy

import "math"

// ucb1 is deterministic given state: it never consumes the RNG. If any
// active arm has zero pulls it forces exploration of the smallest such id;
// otherwise it picks the argmax of mean + sqrt(2*ln(t)/count).
type ucb1 struct {
	*base
	cfg Config
}

func newUCB1(cfg Config) *ucb1 {
	return &ucb1{base: newBase(cfg.Seed), cfg: cfg}
}

func (p *ucb1) Tag() Tag       { return TagUCB1 }
func (p *ucb1) Config() Config { return p.cfg }

func (p *ucb1) AddArm(count uint64, reward float64) ArmId { return p.addArm(count, reward) }
func (p *ucb1) RemoveArm(id ArmId) error                  { return p.removeArm(id) }
func (p *ucb1) DisableArm(id ArmId) error                 { return p.setActive(id, false) }
func (p *ucb1) EnableArm(id ArmId) error                  { return p.setActive(id, true) }
func (p *ucb1) Reset()                                    { p.reset() }
func (p *ucb1) ResetArm(id ArmId, count uint64, reward float64) error {
	return p.resetArm(id, count, reward)
}
func (p *ucb1) Update(id ArmId, reward float64) error { return p.update(id, reward) }
func (p *ucb1) Stats() map[ArmId]ArmStatsView         { return p.stats() }

func (p *ucb1) Draw() (ArmId, error) {
	ids := p.activeArmIDsSorted()
	if len(ids) == 0 {
		return 0, ErrNoActiveArms
	}

	var total uint64
	for _, id := range ids {
		total += p.arms[id].Count
		if p.arms[id].Count == 0 {
			return id, nil
		}
	}

	t := 1 + float64(total)
	best := ids[0]
	bestScore := math.Inf(-1)
	for _, id := range ids {
		arm := p.arms[id]
		score := arm.MeanReward() + math.Sqrt(2*math.Log(t)/float64(arm.Count))
		if score > bestScore {
			bestScore = score
			best = id
		}
	}
	return best, nil
}

func (p *ucb1) Snapshot() ([]byte, error) { return encodeSnapshot(TagUCB1, p.cfg, p.base) }

func (p *ucb1) Restore(blob []byte) error {
	tag, cfg, b, err := decodeSnapshot(blob)
	if err != nil {
		return err
	}
	if tag != TagUCB1 {
		return ErrUnknownSnapshotVersion
	}
	p.base, p.cfg = b, cfg
	return nil
}
