package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	DatabaseURL             string `env:"DATABASE_URL,required"`
	RedisURL                string `env:"REDIS_URL,required"`
	SessionSecret           string `env:"SESSION_SECRET"`
	PairingCodeTTLSeconds   int    `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"600"`
	DeviceTokenTTLSeconds   int    `env:"DEVICE_TOKEN_TTL_SECONDS" envDefault:"2592000"`
	ValidateCacheTTLSeconds int    `env:"VALIDATE_CACHE_TTL_SECONDS" envDefault:"0"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c *Config) DeviceTokenTTL() time.Duration {
	return time.Duration(c.DeviceTokenTTLSeconds) * time.Second
}

// ValidateCacheTTL returns the lifetime of cached validation results.
// Zero disables the cache entirely; validation then always hits the database.
func (c *Config) ValidateCacheTTL() time.Duration {
	return time.Duration(c.ValidateCacheTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingCodeTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_CODE_TTL_SECONDS must be a positive duration")
	}
	if c.DeviceTokenTTLSeconds <= 0 {
		return fmt.Errorf("DEVICE_TOKEN_TTL_SECONDS must be a positive duration")
	}
	if c.ValidateCacheTTLSeconds < 0 {
		return fmt.Errorf("VALIDATE_CACHE_TTL_SECONDS must not be negative")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if c.ValidateCacheTTLSeconds > 60 {
			log.Warn().Msg("VALIDATE_CACHE_TTL_SECONDS above 60s delays revocation visibility")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
