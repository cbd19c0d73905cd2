// Package config loads the worker configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	orchestration "github.com/yeschef/yeschef-agent/core"
)

const envPrefix = "YESCHEF"

type Config struct {
	LiveKit LiveKitConfig        `mapstructure:"livekit"`
	Model   ModelConfig          `mapstructure:"model"`
	Status  StatusConfig         `mapstructure:"status"`
	Vision  orchestration.Config `mapstructure:"vision"`
}

type LiveKitConfig struct {
	URL       string   `mapstructure:"url"`
	APIKey    string   `mapstructure:"api_key"`
	APISecret string   `mapstructure:"api_secret"`
	Rooms     []string `mapstructure:"rooms"`
	Identity  string   `mapstructure:"identity"`
}

type ModelConfig struct {
	URL           string `mapstructure:"url"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	Voice         string `mapstructure:"voice"`
	FrameMimeType string `mapstructure:"frame_mime_type"`
}

type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads .env (if present), then YESCHEF_CONFIG (if set), then
// YESCHEF_* environment variables. Nested keys use underscores, e.g.
// YESCHEF_VISION_DEBOUNCE_WINDOW=300ms.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := os.Getenv(envPrefix + "_CONFIG"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	vision := orchestration.DefaultConfig()

	v.SetDefault("livekit.url", "")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.rooms", []string{})
	v.SetDefault("livekit.identity", "yeschef-agent")

	v.SetDefault("model.url", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.model", "models/gemini-2.0-flash-live-001")
	v.SetDefault("model.voice", "Puck")
	// Empty forwards frames labelled with the track codec.
	v.SetDefault("model.frame_mime_type", "")

	v.SetDefault("status.addr", ":8090")

	v.SetDefault("vision.debounce_window", vision.DebounceWindow)
	v.SetDefault("vision.stale_check_interval", vision.StaleCheckInterval)
	v.SetDefault("vision.stale_threshold", vision.StaleThreshold)
	v.SetDefault("vision.freshness_window", vision.FreshnessWindow)
	v.SetDefault("vision.greeting_warm_up", vision.GreetingWarmUp)
	v.SetDefault("vision.greeting_attempts", vision.GreetingAttempts)
	v.SetDefault("vision.greeting_backoff", vision.GreetingBackoff)
	v.SetDefault("vision.context_update_timeout", vision.ContextUpdateTimeout)
	v.SetDefault("vision.control_topic", vision.ControlTopic)
}

func (c *Config) Validate() error {
	var errs []error
	if c.LiveKit.URL == "" {
		errs = append(errs, errors.New("livekit url is required"))
	}
	if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		errs = append(errs, errors.New("livekit api key and secret are required"))
	}
	if len(c.LiveKit.Rooms) == 0 {
		errs = append(errs, errors.New("at least one livekit room is required"))
	}
	if c.Model.URL == "" {
		errs = append(errs, errors.New("model url is required"))
	}
	if c.Model.APIKey == "" {
		errs = append(errs, errors.New("model api key is required"))
	}
	if err := c.Vision.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid vision config: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
