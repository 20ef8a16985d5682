package session

import "time"

// Config holds session store configuration.
type Config struct {
	// Lifetime is how long a written session stays readable.
	Lifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24m"`

	// KeyPrefix is prepended to every session id before it is stored.
	KeyPrefix string `env:"SESSION_KEY_PREFIX"`

	// GCInterval is how often the Collector sweeps (0 disables it).
	GCInterval time.Duration `env:"SESSION_GC_INTERVAL" envDefault:"10m"`

	// GCMaxLifetime removes sessions not written for longer than this.
	GCMaxLifetime time.Duration `env:"SESSION_GC_MAX_LIFETIME" envDefault:"24m"`

	// GCDeleteRate caps deletes per second during a sweep (0 means unlimited).
	GCDeleteRate int `env:"SESSION_GC_DELETE_RATE" envDefault:"0"`
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{
		Lifetime:      DefaultLifetime,
		GCInterval:    10 * time.Minute,
		GCMaxLifetime: DefaultLifetime,
	}
}

// Options converts the configuration into store options.
func (c Config) Options() []Option {
	return []Option{
		WithLifetime(c.Lifetime),
		WithKeyPrefix(c.KeyPrefix),
		WithDeleteRate(c.GCDeleteRate),
	}
}

// CollectorOptions converts the configuration into collector options.
func (c Config) CollectorOptions() []CollectorOption {
	return []CollectorOption{
		WithInterval(c.GCInterval),
		WithMaxLifetime(c.GCMaxLifetime),
	}
}
