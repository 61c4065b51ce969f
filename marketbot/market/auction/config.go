package auction

import "time"

// Config carries the auction timing knobs. Duration is used both when an
// auction is activated and as the soft-close extension on every accepted bid.
type Config struct {
	Duration         time.Duration
	SweepInterval    time.Duration
	RefreshInterval  time.Duration
	NotifyTimeout    time.Duration
	SweepConcurrency int
}

func DefaultConfig() Config {
	return Config{
		Duration:         2 * time.Hour,
		SweepInterval:    time.Minute,
		RefreshInterval:  15 * time.Minute,
		NotifyTimeout:    10 * time.Second,
		SweepConcurrency: 4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Duration <= 0 {
		c.Duration = d.Duration
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = d.SweepConcurrency
	}
	return c
}
