package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the database. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`                      // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`                     // RetryInterval is the interval between retry attempts. It should be in the format "5s" for 5
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`                   // ConnectTimeout is the timeout for connecting to the database. It should be in the format "30s" for 30 seconds.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"kv:"`                        // KeyPrefix namespaces table metadata and records.
	ScanBatchSize  int64         `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"1000"`                  // ScanBatchSize is the COUNT hint passed to SCAN.
	PollInterval   time.Duration `env:"REDIS_POLL_INTERVAL" envDefault:"100ms"`                   // PollInterval is the delay between table status checks while waiting.
	ClaimTTL       time.Duration `env:"REDIS_CLAIM_TTL" envDefault:"1m"`                          // ClaimTTL bounds how long an unfinished table creation blocks other creators.
}
