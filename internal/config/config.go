package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port string `envconfig:"PORT" default:"8083"`
	Env  string `envconfig:"ENV" default:"development"`

	// DBDSN is the Postgres connection string. When empty the service falls
	// back to the in-memory message store (development only).
	DBDSN string `envconfig:"DB_DSN"`

	// RedisURL backs the advisory presence flags. Optional; empty selects the
	// in-process presence store.
	RedisURL string `envconfig:"REDIS_URL"`

	AMQPURL         string `envconfig:"AMQP_URL"`
	AMQPExchange    string `envconfig:"AMQP_EXCHANGE" default:"chat.events"`
	AuditRoutingKey string `envconfig:"AUDIT_ROUTING_KEY" default:"audit.chat"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`

	DebugRoutes bool `envconfig:"DEBUG_ROUTES" default:"false"`
}

// Load reads configuration from the environment. A .env file is honored when
// present so local development needs no exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}

	if !cfg.IsDevelopment() && cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required outside development")
	}

	return &cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
