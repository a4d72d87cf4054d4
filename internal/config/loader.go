package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".alphonse-console"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CONSOLE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present) and applies environment
// overrides. A missing file is not an error; defaults are used.
func Load() (*Config, error) {
	LoadEnvFiles()
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Override with environment variables for each group
	envconfig.Process("ALPHONSE", &cfg.Alphonse)
	envconfig.Process("CONSOLE_SERVER", &cfg.Server)
	envconfig.Process("CONSOLE_STREAM", &cfg.Stream)
	envconfig.Process("CONSOLE_EVENTS", &cfg.Events)
	envconfig.Process("CONSOLE_NOTIFY", &cfg.Notify)

	if cfg.Alphonse.BaseURL == "" {
		cfg.Alphonse.BaseURL = "http://localhost:8001"
	}
	cfg.Alphonse.BaseURL = strings.TrimSuffix(cfg.Alphonse.BaseURL, "/")
	if cfg.Alphonse.UserName == "" {
		cfg.Alphonse.UserName = defaultUserName()
	}
	if cfg.Stream.PresenceInterval <= 0 {
		cfg.Stream.PresenceInterval = 10 * time.Second
	}
	if cfg.Stream.ChatChunkInterval <= 0 {
		cfg.Stream.ChatChunkInterval = 350 * time.Millisecond
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = "console.ui.events"
	}

	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultUserName() string {
	if v := strings.TrimSpace(os.Getenv("ALPHONSE_UI_USER_NAME")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("USER")); v != "" {
		return v
	}
	return "Alphonse UI"
}

// resolveMessageTimeout maps the raw setting to a timeout duration.
// "none" disables the timeout; blank or non-positive values fall back
// to DefaultMessageTimeout.
func resolveMessageTimeout(raw string) time.Duration {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "none" {
		return 0
	}
	if raw == "" {
		return DefaultMessageTimeout
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return DefaultMessageTimeout
	}
	return time.Duration(secs * float64(time.Second))
}
