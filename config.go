package joinorder

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config controls Reorder.
type Config struct {
	// Strategy is the search policy, "mincard" or "greedy".
	Strategy Strategy `toml:"strategy"`
	// MinRelations is the smallest join group that gets reordered.
	MinRelations int `toml:"min_relations"`
	// TableRows overrides the estimated row count of named tables.
	TableRows map[string]float64 `toml:"table_rows"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Strategy:     GreedyStrategy,
		MinRelations: 2,
	}
}

// DecodeConfig parses a TOML document on top of DefaultConfig.
//
//	strategy = "mincard"
//	min_relations = 3
//
//	[table_rows]
//	orders = 1500000.0
//	customer = 150000.0
func DecodeConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Config{}, ErrInvalidConfig.Wrap(err, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	if c.Strategy != MinCardStrategy && c.Strategy != GreedyStrategy {
		return ErrInvalidConfig.New(fmt.Sprintf("unknown strategy %s", c.Strategy))
	}
	if c.MinRelations < 2 {
		return ErrInvalidConfig.New(fmt.Sprintf("min_relations must be at least 2, got %d", c.MinRelations))
	}
	for name, rows := range c.TableRows {
		if rows < 0 {
			return ErrInvalidConfig.New(fmt.Sprintf("negative row count %v for table %s", rows, name))
		}
	}
	return nil
}
