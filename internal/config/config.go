package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/adilrza0/qusamba-sub001/pkg/db"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	ServiceName      string  `env:"SERVICE_NAME" envDefault:"storefront-service"`
	TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1"`

	// Empty DB_HOST runs the service on in-memory repositories.
	Postgres db.PostgresConfig `envPrefix:"DB_"`

	// Empty REDIS_ADDR keeps carts in process memory.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"720h"`

	// Empty KAFKA_BROKERS logs redemption events instead of publishing them.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"coupon-redemptions"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}
