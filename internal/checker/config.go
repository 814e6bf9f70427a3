package checker

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kimroniny/solidity/internal/encoder"
)

// Duration wraps time.Duration for YAML configs, accepting values like
// "10s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("checker: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config controls a verification run.
type Config struct {
	// Solver is the path to the solver binary; empty means "z3" on PATH.
	Solver string `yaml:"solver"`
	// Timeout is the per-VC solver budget.
	Timeout Duration `yaml:"timeout"`
	// Jobs bounds concurrent solver invocations.
	Jobs int `yaml:"jobs"`
	// Bounds selects the array bounds policy: nondet, assert or assume.
	Bounds string `yaml:"bounds"`
	// MaxUnroll is how many extra times a block may repeat on one path.
	MaxUnroll int `yaml:"max_unroll"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Timeout: Duration(10 * time.Second),
		Jobs:    4,
		Bounds:  "nondet",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("checker: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("checker: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("checker: timeout must be positive, got %s", time.Duration(c.Timeout))
	}
	if c.Jobs < 1 {
		return fmt.Errorf("checker: jobs must be at least 1, got %d", c.Jobs)
	}
	if c.MaxUnroll < 0 {
		return fmt.Errorf("checker: max_unroll must not be negative, got %d", c.MaxUnroll)
	}
	if _, err := c.boundsPolicy(); err != nil {
		return err
	}
	return nil
}

func (c Config) boundsPolicy() (encoder.BoundsPolicy, error) {
	switch c.Bounds {
	case "", "nondet":
		return encoder.BoundsNondet, nil
	case "assert":
		return encoder.BoundsAssert, nil
	case "assume":
		return encoder.BoundsAssume, nil
	default:
		return 0, fmt.Errorf("checker: unknown bounds policy %q (want nondet, assert or assume)", c.Bounds)
	}
}
