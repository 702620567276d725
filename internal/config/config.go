package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

const (
	DriverBBolt  = "bbolt"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	AdminPort      string        `env:"ADMIN_PORT" envDefault:"9090"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"bbolt"`
	DBPath         string        `env:"DB_PATH" envDefault:"/data/partyplanner.db"`
	SeedFile       string        `env:"SEED_FILE"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	GinMode        string        `env:"GIN_MODE" envDefault:"release"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"partyplanner"`
	JWTTTL         time.Duration `env:"JWT_TTL" envDefault:"24h"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:","`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverBBolt, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
