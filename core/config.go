package orchestration

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the externally tunable timing of a session. The zero value is
// not usable; start from [DefaultConfig].
type Config struct {
	// DebounceWindow is the quiet period a camera request must survive before
	// it is applied. Default 300ms.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	// StaleCheckInterval is the Staleness Monitor tick. Default 3s.
	StaleCheckInterval time.Duration `mapstructure:"stale_check_interval"`
	// StaleThreshold is how long a declared-on camera may go without frames
	// before the model is told the feed froze. Default 5s.
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	// FreshnessWindow bounds the age of the latest frame for vision to count as
	// available. Default 2s.
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`

	// GreetingWarmUp is waited before the first greeting attempt so the model
	// connection can finish its handshake. Default 1.5s.
	GreetingWarmUp time.Duration `mapstructure:"greeting_warm_up"`
	// GreetingAttempts caps greeting generation attempts. Default 3.
	GreetingAttempts int `mapstructure:"greeting_attempts"`
	// GreetingBackoff is multiplied by the failed attempt number to get the
	// wait before the next attempt. Default 1.5s.
	GreetingBackoff time.Duration `mapstructure:"greeting_backoff"`

	// ContextUpdateTimeout bounds a single soft-channel delivery. Default 5s.
	ContextUpdateTimeout time.Duration `mapstructure:"context_update_timeout"`
	// ControlTopic is the data topic carrying camera_state messages. Default
	// "yeschef".
	ControlTopic string `mapstructure:"control_topic"`
}

func DefaultConfig() Config {
	return Config{
		DebounceWindow:       300 * time.Millisecond,
		StaleCheckInterval:   3 * time.Second,
		StaleThreshold:       5 * time.Second,
		FreshnessWindow:      2 * time.Second,
		GreetingWarmUp:       1500 * time.Millisecond,
		GreetingAttempts:     3,
		GreetingBackoff:      1500 * time.Millisecond,
		ContextUpdateTimeout: 5 * time.Second,
		ControlTopic:         "yeschef",
	}
}

func (c Config) Validate() error {
	var errs error
	positive := map[string]time.Duration{
		"debounce window":        c.DebounceWindow,
		"stale check interval":   c.StaleCheckInterval,
		"stale threshold":        c.StaleThreshold,
		"freshness window":       c.FreshnessWindow,
		"context update timeout": c.ContextUpdateTimeout,
	}
	for name, value := range positive {
		if value <= 0 {
			errs = errors.Join(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}

	if c.GreetingWarmUp < 0 {
		errs = errors.Join(errs, fmt.Errorf("greeting warm-up must not be negative, got %s", c.GreetingWarmUp))
	}
	if c.GreetingBackoff < 0 {
		errs = errors.Join(errs, fmt.Errorf("greeting backoff must not be negative, got %s", c.GreetingBackoff))
	}
	if c.GreetingAttempts < 1 {
		errs = errors.Join(errs, fmt.Errorf("greeting attempts must be at least 1, got %d", c.GreetingAttempts))
	}
	if c.ControlTopic == "" {
		errs = errors.Join(errs, fmt.Errorf("control topic must be set"))
	}

	return errs
}
