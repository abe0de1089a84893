package policy

// epsilonGreedy picks a uniformly random active arm with probability
// epsilon, else the active arm with the highest mean reward (ties to the
// smallest ArmId). epsilon decays multiplicatively after every draw if
// EpsilonDecay is configured.
type epsilonGreedy struct {
	*base
	cfg Config
}

func newEpsilonGreedy(cfg Config) *epsilonGreedy {
	return &epsilonGreedy{base: newBase(cfg.Seed), cfg: cfg}
}

func (p *epsilonGreedy) Tag() Tag      { return TagEpsilonGreedy }
func (p *epsilonGreedy) Config() Config { return p.cfg }

func (p *epsilonGreedy) AddArm(count uint64, reward float64) ArmId { return p.addArm(count, reward) }
func (p *epsilonGreedy) RemoveArm(id ArmId) error                  { return p.removeArm(id) }
func (p *epsilonGreedy) DisableArm(id ArmId) error                 { return p.setActive(id, false) }
func (p *epsilonGreedy) EnableArm(id ArmId) error                  { return p.setActive(id, true) }
func (p *epsilonGreedy) Reset()                                    { p.reset() }
func (p *epsilonGreedy) ResetArm(id ArmId, count uint64, reward float64) error {
	return p.resetArm(id, count, reward)
}
func (p *epsilonGreedy) Update(id ArmId, reward float64) error { return p.update(id, reward) }
func (p *epsilonGreedy) Stats() map[ArmId]ArmStatsView         { return p.stats() }

func (p *epsilonGreedy) Draw() (ArmId, error) {
	ids := p.activeArmIDsSorted()
	if len(ids) == 0 {
		return 0, ErrNoActiveArms
	}

	explore := p.rng.Float64() < p.cfg.Epsilon
	var chosen ArmId
	if explore {
		chosen = ids[int(p.rng.Float64()*float64(len(ids)))%len(ids)]
	} else {
		chosen = ids[0]
		best := p.arms[chosen].MeanReward()
		for _, id := range ids[1:] {
			if mean := p.arms[id].MeanReward(); mean > best {
				best = mean
				chosen = id
			}
		}
	}

	if p.cfg.EpsilonDecay != nil {
		p.cfg.Epsilon *= *p.cfg.EpsilonDecay
		if p.cfg.Epsilon < 0 {
			p.cfg.Epsilon = 0
		}
	}
	return chosen, nil
}

func (p *epsilonGreedy) Snapshot() ([]byte, error) { return encodeSnapshot(TagEpsilonGreedy, p.cfg, p.base) }

func (p *epsilonGreedy) Restore(blob []byte) error {
	tag, cfg, b, err := decodeSnapshot(blob)
	if err != nil {
		return err
	}
	if tag != TagEpsilonGreedy {
		return ErrUnknownSnapshotVersion
	}
	p.base, p.cfg = b, cfg
	return nil
}
