package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveMessageTimeout(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", DefaultMessageTimeout},
		{"none", 0},
		{"NONE", 0},
		{"0", DefaultMessageTimeout},
		{"-3", DefaultMessageTimeout},
		{"not-a-number", DefaultMessageTimeout},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := resolveMessageTimeout(tc.raw); got != tc.want {
			t.Fatalf("resolveMessageTimeout(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestLoadDefaultsAndEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CONSOLE_CONFIG", filepath.Join(home, "missing.json"))
	t.Setenv("ALPHONSE_API_BASE_URL", "http://agent.local:9000/")
	t.Setenv("ALPHONSE_UI_USER_NAME", "tester")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Alphonse.BaseURL != "http://agent.local:9000" {
		t.Fatalf("expected trimmed base url, got %q", cfg.Alphonse.BaseURL)
	}
	if cfg.Alphonse.UserName != "tester" {
		t.Fatalf("expected user name override, got %q", cfg.Alphonse.UserName)
	}
	if cfg.Server.Port != 5001 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Stream.PresenceInterval != 10*time.Second {
		t.Fatalf("expected 10s presence interval, got %v", cfg.Stream.PresenceInterval)
	}
	if cfg.Stream.ChatChunkInterval != 350*time.Millisecond {
		t.Fatalf("expected 350ms chunk interval, got %v", cfg.Stream.ChatChunkInterval)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"alphonse":{"baseUrl":"http://upstream:8001","messageTimeoutSeconds":"none"},"server":{"port":8080}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)
	// t.Setenv registers the restore; the file values must win only
	// when the variables are truly absent from the environment.
	t.Setenv("ALPHONSE_API_BASE_URL", "")
	os.Unsetenv("ALPHONSE_API_BASE_URL")
	t.Setenv("ALPHONSE_API_MESSAGE_TIMEOUT_SECONDS", "")
	os.Unsetenv("ALPHONSE_API_MESSAGE_TIMEOUT_SECONDS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Alphonse.BaseURL != "http://upstream:8001" {
		t.Fatalf("expected base url from file, got %q", cfg.Alphonse.BaseURL)
	}
	if got := cfg.Alphonse.MessageTimeout(); got != 0 {
		t.Fatalf("expected disabled timeout, got %v", got)
	}
}

func TestLoadBlankTimeoutEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"alphonse":{"messageTimeoutSeconds":"none"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)
	// A present-but-blank variable replaces the file value, and blank
	// resolves to the process default.
	t.Setenv("ALPHONSE_API_MESSAGE_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Alphonse.MessageTimeout(); got != DefaultMessageTimeout {
		t.Fatalf("expected default timeout for blank override, got %v", got)
	}
}

func TestEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env")
	body := "# comment\nexport FROM_FILE=\"file-value\"\nALREADY_SET=file-loses\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CONSOLE_ENV_FILE", path)
	t.Setenv("ALREADY_SET", "process-wins")
	os.Unsetenv("FROM_FILE")
	t.Cleanup(func() { os.Unsetenv("FROM_FILE") })

	LoadEnvFiles()

	if got := os.Getenv("FROM_FILE"); got != "file-value" {
		t.Fatalf("expected env file value, got %q", got)
	}
	if got := os.Getenv("ALREADY_SET"); got != "process-wins" {
		t.Fatalf("expected process env to win, got %q", got)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"export KEY=value", "KEY", "value", true},
		{`KEY="quoted value"`, "KEY", "quoted value", true},
		{"KEY='single'", "KEY", "single", true},
		{"  KEY = spaced  ", "KEY", "spaced", true},
		{"KEY=", "KEY", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no-equals-sign", "", "", false},
		{"=orphan-value", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if ok != tc.ok || key != tc.key || val != tc.val {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v; want %q, %q, %v",
				tc.line, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
