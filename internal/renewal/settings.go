package renewal

import (
	"time"

	"github.com/classbridge/billing-renewals/pkg/config"
)

const (
	DefaultGracePeriod = 24 * time.Hour
	DefaultMaxAttempts = 3
	DefaultBatchSize   = 50
	DefaultDelay       = time.Second

	// billingLeadDays is how many days before coverage ends the next charge is due.
	billingLeadDays = 7
)

// Settings are the tunables shared by the selector, executor and coordinator.
type Settings struct {
	GracePeriod                  time.Duration
	MaxAttempts                  int
	BatchSize                    int
	Delay                        time.Duration
	PenalizeMissingPaymentMethod bool
}

func DefaultSettings() Settings {
	return Settings{
		GracePeriod:                  DefaultGracePeriod,
		MaxAttempts:                  DefaultMaxAttempts,
		BatchSize:                    DefaultBatchSize,
		Delay:                        DefaultDelay,
		PenalizeMissingPaymentMethod: true,
	}
}

// SettingsFromConfig copies the validated renewal config.
func SettingsFromConfig(cfg config.RenewalConfig) Settings {
	return Settings{
		GracePeriod:                  cfg.GracePeriod,
		MaxAttempts:                  cfg.MaxAttempts,
		BatchSize:                    cfg.BatchSize,
		Delay:                        cfg.Delay,
		PenalizeMissingPaymentMethod: cfg.PenalizeMissingPaymentMethod,
	}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.GracePeriod < 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.Delay < 0 {
		s.Delay = 0
	}
	return s
}
