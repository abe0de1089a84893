package policy

import "math"

// thompsonBeta samples theta_a ~ Beta(1+reward, 1+count-reward) per active
// arm (the cumulative reward is clamped to [0, count] only for the Beta
// parameters; the raw counters are left unclamped so stats stay truthful)
// and draws the argmax.
type thompsonBeta struct {
	*base
	cfg Config
}

func newThompsonBeta(cfg Config) *thompsonBeta {
	return &thompsonBeta{base: newBase(cfg.Seed), cfg: cfg}
}

func (p *thompsonBeta) Tag() Tag       { return TagThompsonBeta }
func (p *thompsonBeta) Config() Config { return p.cfg }

func (p *thompsonBeta) AddArm(count uint64, reward float64) ArmId { return p.addArm(count, reward) }
func (p *thompsonBeta) RemoveArm(id ArmId) error                  { return p.removeArm(id) }
func (p *thompsonBeta) DisableArm(id ArmId) error                 { return p.setActive(id, false) }
func (p *thompsonBeta) EnableArm(id ArmId) error                  { return p.setActive(id, true) }
func (p *thompsonBeta) Reset()                                    { p.reset() }
func (p *thompsonBeta) ResetArm(id ArmId, count uint64, reward float64) error {
	return p.resetArm(id, count, reward)
}
func (p *thompsonBeta) Update(id ArmId, reward float64) error { return p.update(id, reward) }
func (p *thompsonBeta) Stats() map[ArmId]ArmStatsView         { return p.stats() }

func (p *thompsonBeta) Draw() (ArmId, error) {
	ids := p.activeArmIDsSorted()
	if len(ids) == 0 {
		return 0, ErrNoActiveArms
	}

	best := ids[0]
	bestSample := math.Inf(-1)
	for _, id := range ids {
		arm := p.arms[id]
		clampedReward := math.Min(math.Max(arm.CumulativeReward, 0), float64(arm.Count))
		alpha := 1 + clampedReward
		beta := 1 + float64(arm.Count) - clampedReward
		sample := p.sampleBeta(alpha, beta)
		if sample > bestSample {
			bestSample = sample
			best = id
		}
	}
	return best, nil
}

// sampleBeta draws from Beta(alpha, beta) as the ratio x/(x+y) of two
// independent Gamma(alpha,1) and Gamma(beta,1) draws.
func (p *thompsonBeta) sampleBeta(alpha, beta float64) float64 {
	x := p.sampleGamma(alpha)
	y := p.sampleGamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma implements the Marsaglia-Tsang method for shape >= 1, boosted
// via the standard u^(1/shape) transform for shape in (0,1). This replaces
// the normal-approximation gamma sampler sketched elsewhere in the corpus
// with the textbook-correct rejection algorithm, since Thompson sampling's
// determinism property (§8) depends on the sampler being a pure function of
// RNG state, not an approximation that drifts from the true Beta posterior.
func (p *thompsonBeta) sampleGamma(shape float64) float64 {
	if shape < 1 {
		u := p.rng.Float64()
		return p.sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = p.rng.normFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := p.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

func (p *thompsonBeta) Snapshot() ([]byte, error) { return encodeSnapshot(TagThompsonBeta, p.cfg, p.base) }

func (p *thompsonBeta) Restore(blob []byte) error {
	tag, cfg, b, err := decodeSnapshot(blob)
	if err != nil {
		return err
	}
	if tag != TagThompsonBeta {
		return ErrUnknownSnapshotVersion
	}
	p.base, p.cfg = b, cfg
	return nil
}
