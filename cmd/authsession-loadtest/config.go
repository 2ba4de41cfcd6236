package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type loadConfig struct {
	Workers  int           `yaml:"workers" env:"LOADTEST_WORKERS" env-default:"64"`
	Requests int           `yaml:"requests" env:"LOADTEST_REQUESTS" env-default:"20000"`
	Revoke   time.Duration `yaml:"revoke_every" env:"LOADTEST_REVOKE_EVERY" env-default:"50ms"`
	LogLevel string        `yaml:"log_level" env:"LOADTEST_LOG_LEVEL" env-default:"warn"`
	Metrics  bool          `yaml:"metrics" env:"LOADTEST_METRICS" env-default:"true"`
	Audit    bool          `yaml:"audit" env:"LOADTEST_AUDIT" env-default:"false"`

	Store       string `yaml:"store" env:"LOADTEST_STORE" env-default:"memory"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR"`
	FilePath    string `yaml:"file_path" env:"LOADTEST_FILE" env-default:"authsession-loadtest.json"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	Table       string `yaml:"table" env:"LOADTEST_TABLE" env-default:"authsession_kv"`

	JWTSecret string        `yaml:"jwt_secret" env:"LOADTEST_JWT_SECRET" env-default:"loadtest-signing-key-0123456789abcdef"`
	AccessTTL time.Duration `yaml:"access_ttl" env:"LOADTEST_ACCESS_TTL" env-default:"24h"`
}

// loadConfiguration reads path when set, then overlays the environment.
func loadConfiguration(path string) (loadConfig, error) {
	var cfg loadConfig

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}

func (c loadConfig) validate() error {
	if c.Workers <= 0 || c.Requests <= 0 {
		return fmt.Errorf("workers and requests must be > 0")
	}
	switch c.Store {
	case "memory", "redis", "file":
	case "postgres", "pgx":
		if c.DatabaseURL == "" {
			return fmt.Errorf("store %q requires DATABASE_URL", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}
