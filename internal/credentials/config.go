package credentials

import (
	"fmt"

	"crew-onboarding/internal/common/config"
)

type Config struct {
	CompanyDomain  string
	BcryptCost     int
	PasswordLength int
	PasswordDigits int
	PasswordSymbol int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		CompanyDomain:  "example-roofing.com",
		BcryptCost:     12,
		PasswordLength: 16,
		PasswordDigits: 4,
		PasswordSymbol: 2,
	}
	if cfg == nil {
		return c
	}
	cc := cfg.Credentials
	if cc.CompanyDomain != "" {
		c.CompanyDomain = cc.CompanyDomain
	}
	if cc.BcryptCost != 0 {
		c.BcryptCost = cc.BcryptCost
	}
	if cc.PasswordLength != 0 {
		c.PasswordLength = cc.PasswordLength
	}
	if cc.PasswordDigits != 0 {
		c.PasswordDigits = cc.PasswordDigits
	}
	if cc.PasswordSymbol != 0 {
		c.PasswordSymbol = cc.PasswordSymbol
	}
	return c
}

func (c *Config) validate() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	if c.PasswordLength < 12 {
		return fmt.Errorf("password length must be at least 12, got %d", c.PasswordLength)
	}
	if c.PasswordDigits+c.PasswordSymbol > c.PasswordLength {
		return fmt.Errorf("password digits and symbols exceed length")
	}
	if c.CompanyDomain == "" {
		return fmt.Errorf("company domain is required")
	}
	return nil
}
