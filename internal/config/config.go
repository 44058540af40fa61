package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// FirebaseProjectID enables bearer-token auth and, with DocStore=firestore,
	// the Firestore document store.
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	DocStore                string `env:"DOC_STORE" envDefault:"firestore"` // firestore or memory

	// MySQL for the transition audit log. Leave DB_HOST empty to disable it.
	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	InflightTTL      time.Duration `env:"INFLIGHT_TTL" envDefault:"30s"`
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1m"`
	// SessionIdleTimeout closes inbox sessions nobody has read for this long.
	// The sweep runs every ReminderInterval.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) AuditLogEnabled() bool {
	return c.DBHost != "" || c.InstanceConnectionName != ""
}

func (c *Config) UseFirestore() bool {
	return c.DocStore != "memory" && c.FirebaseProjectID != ""
}
