package session

import (
	"time"

	"crew-onboarding/internal/common/config"
)

type Config struct {
	Secret    string
	Issuer    string
	TTL       time.Duration
	KeyPrefix string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Issuer:    "crew-onboarding",
		TTL:       7 * 24 * time.Hour,
		KeyPrefix: "onboarding",
	}
	if cfg == nil {
		return c
	}
	c.Secret = cfg.Session.JWTSecret
	if cfg.Session.Issuer != "" {
		c.Issuer = cfg.Session.Issuer
	}
	if cfg.Session.TTL > 0 {
		c.TTL = config.GetDuration(cfg.Session.TTL)
	}
	if cfg.Session.KeyPrefix != "" {
		c.KeyPrefix = cfg.Session.KeyPrefix
	}
	return c
}
