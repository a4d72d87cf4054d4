package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadEnvFiles applies the file named by CONSOLE_ENV_FILE (when set)
// and then the env file inside the console config directory. Values
// never override variables already present in the process
// environment, so the file acts as a default layer under the shell.
func LoadEnvFiles() {
	if explicit := strings.TrimSpace(os.Getenv("CONSOLE_ENV_FILE")); explicit != "" {
		applyEnvFile(explicit)
	}
	if home, err := os.UserHomeDir(); err == nil {
		applyEnvFile(filepath.Join(home, ConfigDir, "env"))
	}
}

func applyEnvFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(raw), "\n") {
		key, val, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
}

// parseEnvLine reads one KEY=VALUE line, tolerating comments, an
// "export " prefix and single- or double-quoted values.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if len(val) >= 2 {
		switch {
		case val[0] == '"' && val[len(val)-1] == '"',
			val[0] == '\'' && val[len(val)-1] == '\'':
			val = val[1 : len(val)-1]
		}
	}
	return key, val, true
}
