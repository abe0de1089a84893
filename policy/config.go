package policy

// Tag names one of the three supported policies.
type Tag string

const (
	TagEpsilonGreedy Tag = "EpsilonGreedy"
	TagUCB1          Tag = "UCB1"
	TagThompsonBeta  Tag = "ThompsonBeta"
)

// Config is the sum type described in spec §3. Only the fields relevant to
// Tag are meaningful. Its own JSON form holds only the per-policy fields
// (Tag is excluded); httpapi.decodeCreate reads it from the single-key
// object `{"<Tag>": {...}}` and sets Tag from the key.
type Config struct {
	Tag Tag `json:"-"`

	// EpsilonGreedy
	Epsilon      float64  `json:"epsilon,omitempty"`
	EpsilonDecay *float64 `json:"epsilon_decay,omitempty"`

	// Shared by all three (UCB1 accepts but ignores it)
	Seed *uint64 `json:"seed,omitempty"`
}

// Validate checks the structural constraints from spec §3/§7 (BadRequest).
func (c Config) Validate() error {
	switch c.Tag {
	case TagEpsilonGreedy:
		if c.Epsilon < 0 || c.Epsilon > 1 {
			return ErrBadRequest
		}
		if c.EpsilonDecay != nil && (*c.EpsilonDecay <= 0 || *c.EpsilonDecay > 1) {
			return ErrBadRequest
		}
	case TagUCB1, TagThompsonBeta:
		// no additional constraints
	default:
		return ErrBadRequest
	}
	return nil
}
