package provision

import (
	"time"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// DefaultHashKey is the partition key attribute of the session table.
const DefaultHashKey = "id"

// DefaultWaitTimeout bounds how long EnsureTable waits for a new table.
const DefaultWaitTimeout = 30 * time.Second

// Config holds session table provisioning settings.
type Config struct {
	TableName string `env:"SESSION_TABLE_NAME" envDefault:"sessions"`
	HashKey   string `env:"SESSION_TABLE_HASH_KEY" envDefault:"id"`

	ReadCapacityUnits  int64 `env:"SESSION_TABLE_READ_CAPACITY" envDefault:"5"`
	WriteCapacityUnits int64 `env:"SESSION_TABLE_WRITE_CAPACITY" envDefault:"5"`

	// WaitTimeout bounds the wait for a newly created table to become active.
	WaitTimeout time.Duration `env:"SESSION_TABLE_WAIT_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns default provisioning configuration.
func DefaultConfig() Config {
	return Config{
		TableName:          "sessions",
		HashKey:            DefaultHashKey,
		ReadCapacityUnits:  5,
		WriteCapacityUnits: 5,
		WaitTimeout:        DefaultWaitTimeout,
	}
}

// TableSpec builds a validated TableSpec from the configuration.
func (c Config) TableSpec() (TableSpec, error) {
	return NewTableSpec(c.TableName, c.ReadCapacityUnits, c.WriteCapacityUnits, WithHashKey(c.HashKey))
}

// NewFromConfig creates a Provisioner honoring the configured wait timeout.
func NewFromConfig(client kvstore.Client, cfg Config, opts ...Option) *Provisioner {
	configOpts := []Option{WithWaitTimeout(cfg.WaitTimeout)}
	configOpts = append(configOpts, opts...)
	return New(client, configOpts...)
}
