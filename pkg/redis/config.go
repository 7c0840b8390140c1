package redis

import "time"

// Config describes the Redis connection used for shared credential storage.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" yaml:"url"`                                          // ConnectionURL is the server URL, e.g. "redis://:password@localhost:6379/0".
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"signin:" yaml:"key_prefix"`       // KeyPrefix namespaces every stored record.
	RecordTTL      time.Duration `env:"REDIS_RECORD_TTL" envDefault:"0s" yaml:"record_ttl"`            // RecordTTL expires records; zero keeps them until deleted.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3" yaml:"retry_attempts"`     // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s" yaml:"retry_interval"`    // RetryInterval is the delay between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s" yaml:"connect_timeout"` // ConnectTimeout bounds the whole connection phase.
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
