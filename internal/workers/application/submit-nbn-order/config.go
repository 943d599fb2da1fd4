package submitnbnorder

import (
	"fmt"
	"time"

	"nbn-order-workers/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// UpdateAttempts bounds the local retries of the terminal status write.
	UpdateAttempts int           `mapstructure:"update_attempts"`
	UpdateBackoff  time.Duration `mapstructure:"update_backoff"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxJobsActive:  5,
		Timeout:        30 * time.Second,
		UpdateAttempts: 3,
		UpdateBackoff:  200 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.UpdateAttempts <= 0 {
		return fmt.Errorf("update_attempts must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	wcfg := config.GetWorkerConfig(appConfig, TaskType)
	cfg.Enabled = wcfg.Enabled
	if wcfg.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wcfg.MaxJobsActive
	}
	if wcfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	if wcfg.MaxRetries > 0 {
		cfg.UpdateAttempts = wcfg.MaxRetries
	}

	// the job must outlive the B2B call and the status write that follows it
	if b2bTimeout := config.GetDuration(appConfig.B2B.Timeout); cfg.Timeout <= b2bTimeout {
		cfg.Timeout = b2bTimeout + 5*time.Second
	}
	return cfg
}
