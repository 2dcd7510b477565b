package fallback

import "fmt"

// DefaultMaxRetries is the number of fallbacks granted per session unless
// configured otherwise.
const DefaultMaxRetries = 3

// Config controls whether fallbacks happen and how many are allowed.
type Config struct {
	Enabled    bool `koanf:"enabled" json:"enabled"`
	MaxRetries int  `koanf:"max_retries" json:"max_retries"`
}

// DefaultConfig returns a Config with fallback enabled and DefaultMaxRetries.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be non-negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	return nil
}
