package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/duelgrounds/quickdraw/go/internal/match"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from an optional YAML file
// with environment variables taking precedence.
type Config struct {
	Server struct {
		Port   string `yaml:"port"`
		WSPath string `yaml:"ws_path"`
	} `yaml:"server"`

	Match struct {
		StaringMs        int `yaml:"staring_ms"`
		SignalDelayMinMs int `yaml:"signal_delay_min_ms"`
		SignalDelayMaxMs int `yaml:"signal_delay_max_ms"`
		PostRoundMs      int `yaml:"post_round_ms"`
	} `yaml:"match"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Port = "3001"
	cfg.Server.WSPath = "/ws"
	timing := match.DefaultConfig()
	cfg.Match.StaringMs = int(timing.StaringDuration.Milliseconds())
	cfg.Match.SignalDelayMinMs = int(timing.SignalDelayMin.Milliseconds())
	cfg.Match.SignalDelayMaxMs = int(timing.SignalDelayMax.Milliseconds())
	cfg.Match.PostRoundMs = int(timing.PostRoundDelay.Milliseconds())
	return cfg
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.WSPath = getEnv("WS_PATH", cfg.Server.WSPath)
	cfg.Match.StaringMs = getEnvAsInt("STARING_MS", cfg.Match.StaringMs)
	cfg.Match.SignalDelayMinMs = getEnvAsInt("SIGNAL_DELAY_MIN_MS", cfg.Match.SignalDelayMinMs)
	cfg.Match.SignalDelayMaxMs = getEnvAsInt("SIGNAL_DELAY_MAX_MS", cfg.Match.SignalDelayMaxMs)
	cfg.Match.PostRoundMs = getEnvAsInt("POST_ROUND_MS", cfg.Match.PostRoundMs)
	return cfg, nil
}

// MatchConfig converts the millisecond-level settings into engine timing.
func (c Config) MatchConfig() match.Config {
	return match.Config{
		StaringDuration: time.Duration(c.Match.StaringMs) * time.Millisecond,
		SignalDelayMin:  time.Duration(c.Match.SignalDelayMinMs) * time.Millisecond,
		SignalDelayMax:  time.Duration(c.Match.SignalDelayMaxMs) * time.Millisecond,
		PostRoundDelay:  time.Duration(c.Match.PostRoundMs) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
