// internal/workers/application/create-application-record/config.go
package createapplicationrecord

import "time"

// No per-worker settings beyond the job timeout.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
