package submission

import (
	"time"

	"crew-onboarding/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 30 * time.Second}
	if cfg != nil && cfg.Wizard.SubmitTimeout > 0 {
		c.Timeout = config.GetDuration(cfg.Wizard.SubmitTimeout)
	}
	return c
}
