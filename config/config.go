// Package config loads the server's configuration, adapted directly from
// the teacher's reinforcement/learning.go FromYaml: viper reads the file
// generically, then the concrete payload is re-marshaled through yaml.v3
// into a typed struct. That double-hop existed there so one YAML file could
// carry a polymorphic training payload; it is reused here so the same file
// can carry an optional `default_policy` section whose shape depends on its
// `kind`, exactly the OuterConfig{Kind, Def} pattern.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"banditserve/policy"
)

// Config is the enumerated configuration from spec §6.
type Config struct {
	BindAddress         string `mapstructure:"bind_address" yaml:"bind_address"`
	CheckpointIntervalMS int64  `mapstructure:"checkpoint_interval_ms" yaml:"checkpoint_interval_ms"`
	StateDirectory      string `mapstructure:"state_directory" yaml:"state_directory"`
	MailboxCapacity     int    `mapstructure:"mailbox_capacity" yaml:"mailbox_capacity"`
	RestartMaxBurst     int    `mapstructure:"restart_max_burst" yaml:"restart_max_burst"`
	RestartBackoffMS    int64  `mapstructure:"restart_backoff_ms" yaml:"restart_backoff_ms"`
	AccountantEnabled   bool   `mapstructure:"accountant_enabled" yaml:"accountant_enabled"`

	// DefaultPolicy seeds /v1/create requests that omit a policy body.
	// Optional; nil if the file has no default_policy section.
	DefaultPolicy *policy.Config `mapstructure:"-" yaml:"-"`

	outer outerConfig `mapstructure:"-" yaml:"-"`
}

type outerConfig struct {
	DefaultPolicy *policyDef `mapstructure:"default_policy"`
}

// policyDef mirrors OuterConfig{Kind, Def} from the teacher: Kind selects
// which concrete shape Def re-marshals into.
type policyDef struct {
	Kind string      `mapstructure:"kind" yaml:"kind"`
	Def  interface{} `mapstructure:"def" yaml:"def"`
}

type policyDefBody struct {
	Epsilon      float64  `yaml:"epsilon"`
	EpsilonDecay *float64 `yaml:"epsilon_decay"`
	Seed         *uint64  `yaml:"seed"`
}

// Defaults returns a Config with every field at the value used when no
// config file is supplied at all (cmd/banditserve's zero-config mode).
func Defaults() Config {
	return Config{
		BindAddress:          ":8080",
		CheckpointIntervalMS: 10_000,
		StateDirectory:       "./data",
		MailboxCapacity:      64,
		RestartMaxBurst:      5,
		RestartBackoffMS:     100,
		AccountantEnabled:    true,
	}
}

// FromYaml loads configuration from path, falling back to Defaults() for
// any field the file doesn't set (viper's generic read into the concrete
// struct already does this for scalar fields; DefaultPolicy is handled via
// the outer/inner re-marshal below since it is the one polymorphic section).
func FromYaml(path string) (Config, error) {
	cfg := Defaults()

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return Config{}, err
	}
	if err := vp.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	var outer outerConfig
	if err := vp.Unmarshal(&outer); err != nil {
		return Config{}, err
	}
	if outer.DefaultPolicy != nil {
		spec, err := yaml.Marshal(outer.DefaultPolicy.Def)
		if err != nil {
			return Config{}, err
		}
		var body policyDefBody
		if err := yaml.Unmarshal(spec, &body); err != nil {
			return Config{}, err
		}
		tag := policy.Tag(outer.DefaultPolicy.Kind)
		pc := policy.Config{
			Tag:          tag,
			Epsilon:      body.Epsilon,
			EpsilonDecay: body.EpsilonDecay,
			Seed:         body.Seed,
		}
		if err := pc.Validate(); err != nil {
			return Config{}, fmt.Errorf("config: invalid default_policy: %w", err)
		}
		cfg.DefaultPolicy = &pc
	}

	return cfg, nil
}
