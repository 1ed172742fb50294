package badge

import "crew-onboarding/internal/common/config"

// Config holds the upload limit and the advisory quality thresholds.
type Config struct {
	MaxUploadBytes    int64
	MinWidth          int
	MinHeight         int
	DarkAverage       float64
	BrightAverage     float64
	DarkPixelLuma     float64
	DarkPixelMaxRatio float64
	JPEGQuality       int
}

func DefaultConfig() *Config {
	return &Config{
		MaxUploadBytes:    10 << 20,
		MinWidth:          300,
		MinHeight:         300,
		DarkAverage:       60,
		BrightAverage:     200,
		DarkPixelLuma:     40,
		DarkPixelMaxRatio: 0.4,
		JPEGQuality:       90,
	}
}

func LoadConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	b := cfg.Badge
	if b.MaxUploadBytes > 0 {
		c.MaxUploadBytes = b.MaxUploadBytes
	}
	if b.MinWidth > 0 {
		c.MinWidth = b.MinWidth
	}
	if b.MinHeight > 0 {
		c.MinHeight = b.MinHeight
	}
	if b.DarkAverage > 0 {
		c.DarkAverage = b.DarkAverage
	}
	if b.BrightAverage > 0 {
		c.BrightAverage = b.BrightAverage
	}
	if b.DarkPixelLuma > 0 {
		c.DarkPixelLuma = b.DarkPixelLuma
	}
	if b.DarkPixelMaxRatio > 0 {
		c.DarkPixelMaxRatio = b.DarkPixelMaxRatio
	}
	if b.JPEGQuality > 0 {
		c.JPEGQuality = b.JPEGQuality
	}
	return c
}
