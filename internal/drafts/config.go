package drafts

import (
	"time"

	"crew-onboarding/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 5 * time.Second}
	if cfg != nil && cfg.Wizard.SaveTimeout > 0 {
		c.Timeout = config.GetDuration(cfg.Wizard.SaveTimeout)
	}
	return c
}
