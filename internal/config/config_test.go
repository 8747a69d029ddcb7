package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MEMEBOARD_ADDR", "MEMEBOARD_DB", "MEMEBOARD_BLOB_DIR", "MEMEBOARD_BASE_URL",
		"MEMEBOARD_TEMPLATES", "MEMEBOARD_APP_ID", "MEMEBOARD_LOG_LEVEL", "MEMEBOARD_FONT",
		"MEMEBOARD_EDITOR_TTL", "MEMEBOARD_SESSION_TTL", "MEMEBOARD_CODE_TTL",
		"MEMEBOARD_SMTP_ADDR", "MEMEBOARD_SMTP_FROM", "MEMEBOARD_SMTP_USER", "MEMEBOARD_SMTP_PASS",
		"X_CONSUMER_KEY", "X_CONSUMER_SECRET", "X_ACCESS_TOKEN", "X_ACCESS_SECRET", "DRY_RUN",
	} {
		t.Setenv(k, "")
	}
}

// ===================== envOr =====================

func TestEnvOr(t *testing.T) {
	const key = "TEST_ENVVAR_MEMEBOARD_XYZ"

	// Unset: should return default.
	os.Unsetenv(key)
	if got := envOr(key, "default_val"); got != "default_val" {
		t.Errorf("envOr unset = %q, want %q", got, "default_val")
	}

	// Set: should return env value.
	t.Setenv(key, "custom")
	if got := envOr(key, "default_val"); got != "custom" {
		t.Errorf("envOr set = %q, want %q", got, "custom")
	}
}

// ===================== Load =====================

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Syndicate() {
		t.Error("syndication enabled without credentials")
	}
	editor, session, code := cfg.Durations()
	if editor != 30*time.Minute || session != 720*time.Hour || code != 10*time.Minute {
		t.Errorf("durations = %v %v %v", editor, session, code)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "memeboard.toml")
	os.WriteFile(path, []byte(`
addr = ":9090"
db = "/var/lib/memeboard.sqlite"
app_id = "from-file"
log_level = "debug"

[smtp]
addr = "smtp.example.com:587"
from = "memes@example.com"
`), 0644)
	t.Setenv("MEMEBOARD_APP_ID", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9090" || cfg.DB != "/var/lib/memeboard.sqlite" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.AppID != "from-env" {
		t.Errorf("app id = %q, want env override", cfg.AppID)
	}
	if cfg.SMTP.Addr != "smtp.example.com:587" || cfg.SMTP.From != "memes@example.com" {
		t.Errorf("smtp = %+v", cfg.SMTP)
	}
	if cfg.BlobDir != "./blobs" {
		t.Errorf("default lost: blob dir = %q", cfg.BlobDir)
	}
	if l, _ := ParseLevel(cfg.LogLevel); l != slog.LevelDebug {
		t.Errorf("level = %v", l)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("addr = "), 0644)

	tests := []struct {
		name string
		path string
		env  map[string]string
		want string
	}{
		{"missing file", filepath.Join(dir, "nope.toml"), nil, "read"},
		{"malformed toml", bad, nil, "parse"},
		{"bad duration", "", map[string]string{"MEMEBOARD_EDITOR_TTL": "soon"}, "editor_ttl"},
		{"bad level", "", map[string]string{"MEMEBOARD_LOG_LEVEL": "loud"}, "log level"},
		{"partial X credentials", "", map[string]string{"X_CONSUMER_KEY": "k"}, "X_ACCESS_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_XCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("X_CONSUMER_KEY", "ck")
	t.Setenv("X_CONSUMER_SECRET", "cs")
	t.Setenv("X_ACCESS_TOKEN", "at")
	t.Setenv("X_ACCESS_SECRET", "as")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Syndicate() || cfg.X.DryRun {
		t.Errorf("x = %+v", cfg.X)
	}
	if c := cfg.X.Credentials(); c.AccessSecret != "as" || c.ConsumerKey != "ck" {
		t.Errorf("credentials = %+v", c)
	}
}

func TestLoad_DryRunWithoutCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRY_RUN", "1")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.X.DryRun || !cfg.Syndicate() {
		t.Errorf("x = %+v", cfg.X)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}
