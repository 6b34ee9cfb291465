package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

type Config struct {
	Port                string        `env:"PORT,default=8080"`
	StoreDriver         string        `env:"STORE_DRIVER,default=badger"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	BadgerPath          string        `env:"BADGER_PATH,default=./data"`
	RedisURL            string        `env:"REDIS_URL"`
	JWTSecret           string        `env:"JWT_SECRET,required=true"`
	TokenTTL            time.Duration `env:"TOKEN_TTL,default=24h"`
	OperationTimeout    time.Duration `env:"OPERATION_TIMEOUT,default=5s"`
	SubscriberQueueSize int           `env:"SUBSCRIBER_QUEUE_SIZE,default=256"`
	HubShards           int           `env:"HUB_SHARDS,default=64"`
	AllowedOrigins      string        `env:"ALLOWED_ORIGINS,default=*"`
	WSRateBurst         int           `env:"WS_RATE_BURST,default=20"`
	WSRatePerSecond     float64       `env:"WS_RATE_PER_SECOND,default=10"`
	LogLevel            string        `env:"LOG_LEVEL,default=INFO"`
	HistoryPageLimit    int           `env:"HISTORY_PAGE_LIMIT,default=50"`
}

// LoadDotEnv reads .env.local, falling back to .env. Missing files are not
// an error; the process environment always wins.
func LoadDotEnv(log *slog.Logger) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Debug(".env not found, using environment variables")
		}
	}
}

// Load unmarshals the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverBadger:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.SubscriberQueueSize <= 0 || c.HubShards <= 0 {
		errs = append(errs, errors.New("SUBSCRIBER_QUEUE_SIZE and HUB_SHARDS must be positive"))
	}
	if c.HistoryPageLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_PAGE_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
