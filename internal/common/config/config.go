// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	B2B           B2BConfig               `mapstructure:"b2b"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	API           APIConfig               `mapstructure:"api"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	Migrate        bool   `mapstructure:"migrate"` // apply embedded migrations on startup
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig is optional; an empty address disables dispatch claims.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// B2BConfig points at the carrier's order placement endpoint.
type B2BConfig struct {
	Endpoint           string  `mapstructure:"endpoint"`
	Timeout            int     `mapstructure:"timeout"` // milliseconds
	SendIdempotencyKey bool    `mapstructure:"send_idempotency_key"`
	RateLimit          float64 `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst              int     `mapstructure:"burst"`
}

// DispatchConfig controls how eligible applications are handed to the task queue.
type DispatchConfig struct {
	Queue       string `mapstructure:"queue"` // "zeebe" or "local"
	PoolWorkers int    `mapstructure:"pool_workers"`
	PoolBuffer  int    `mapstructure:"pool_buffer"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	ClaimTTL    int    `mapstructure:"claim_ttl"` // milliseconds
	Schedule    string `mapstructure:"schedule"`  // cron expression
	ProcessID   string `mapstructure:"process_id"`
	ZeebeTimer  bool   `mapstructure:"zeebe_timer"` // deploy the timer-started dispatch process
}

const (
	QueueZeebe = "zeebe"
	QueueLocal = "local"
)

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	PageSize      int    `mapstructure:"page_size"`
	BaseURL       string `mapstructure:"base_url"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds settings for application lifecycle events.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
