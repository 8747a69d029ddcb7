// Package config loads service settings: defaults, then an optional TOML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mikequentel/memeboard/internal/syndicate"
)

type Config struct {
	Addr      string `toml:"addr"`
	DB        string `toml:"db"`
	BlobDir   string `toml:"blob_dir"`
	BaseURL   string `toml:"base_url"`
	Templates string `toml:"templates"`
	AppID     string `toml:"app_id"`
	LogLevel  string `toml:"log_level"`
	// Font is a TTF/OTF path; empty uses the bundled Go Regular.
	Font string `toml:"font"`

	// Durations in time.ParseDuration syntax.
	EditorTTL  string `toml:"editor_ttl"`
	SessionTTL string `toml:"session_ttl"`
	CodeTTL    string `toml:"code_ttl"`

	SMTP SMTPConfig `toml:"smtp"`
	X    XConfig    `toml:"x"`
}

// SMTPConfig selects the mailer for sign-in codes. Without an address codes
// are logged.
type SMTPConfig struct {
	Addr     string `toml:"addr"`
	From     string `toml:"from"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type XConfig struct {
	ConsumerKey    string `toml:"consumer_key"`
	ConsumerSecret string `toml:"consumer_secret"`
	AccessToken    string `toml:"access_token"`
	AccessSecret   string `toml:"access_secret"`
	DryRun         bool   `toml:"dry_run"`
}

// Credentials returns the X keys as syndicate credentials.
func (x XConfig) Credentials() syndicate.Credentials {
	return syndicate.Credentials{
		ConsumerKey:    x.ConsumerKey,
		ConsumerSecret: x.ConsumerSecret,
		AccessToken:    x.AccessToken,
		AccessSecret:   x.AccessSecret,
	}
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:       ":8080",
		DB:         "./memeboard.sqlite",
		BlobDir:    "./blobs",
		BaseURL:    "http://localhost:8080",
		Templates:  "./Assets",
		LogLevel:   "info",
		EditorTTL:  "30m",
		SessionTTL: "720h",
		CodeTTL:    "10m",
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Addr = envOr("MEMEBOARD_ADDR", c.Addr)
	c.DB = envOr("MEMEBOARD_DB", c.DB)
	c.BlobDir = envOr("MEMEBOARD_BLOB_DIR", c.BlobDir)
	c.BaseURL = envOr("MEMEBOARD_BASE_URL", c.BaseURL)
	c.Templates = envOr("MEMEBOARD_TEMPLATES", c.Templates)
	c.AppID = envOr("MEMEBOARD_APP_ID", c.AppID)
	c.LogLevel = envOr("MEMEBOARD_LOG_LEVEL", c.LogLevel)
	c.Font = envOr("MEMEBOARD_FONT", c.Font)
	c.EditorTTL = envOr("MEMEBOARD_EDITOR_TTL", c.EditorTTL)
	c.SessionTTL = envOr("MEMEBOARD_SESSION_TTL", c.SessionTTL)
	c.CodeTTL = envOr("MEMEBOARD_CODE_TTL", c.CodeTTL)

	c.SMTP.Addr = envOr("MEMEBOARD_SMTP_ADDR", c.SMTP.Addr)
	c.SMTP.From = envOr("MEMEBOARD_SMTP_FROM", c.SMTP.From)
	c.SMTP.Username = envOr("MEMEBOARD_SMTP_USER", c.SMTP.Username)
	c.SMTP.Password = envOr("MEMEBOARD_SMTP_PASS", c.SMTP.Password)

	c.X.ConsumerKey = envOr("X_CONSUMER_KEY", c.X.ConsumerKey)
	c.X.ConsumerSecret = envOr("X_CONSUMER_SECRET", c.X.ConsumerSecret)
	c.X.AccessToken = envOr("X_ACCESS_TOKEN", c.X.AccessToken)
	c.X.AccessSecret = envOr("X_ACCESS_SECRET", c.X.AccessSecret)
	if v := os.Getenv("DRY_RUN"); v != "" {
		c.X.DryRun = v == "1"
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db is empty"))
	}
	for name, v := range map[string]string{"editor_ttl": c.EditorTTL, "session_ttl": c.SessionTTL, "code_ttl": c.CodeTTL} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	// Partial X credentials are a misconfiguration; none at all disables
	// syndication.
	if creds := c.X.Credentials(); !creds.Empty() {
		if missing := creds.Missing(); len(missing) > 0 {
			errs = append(errs, fmt.Errorf("missing required env var: %s", strings.Join(missing, ", ")))
		}
	}
	return errors.Join(errs...)
}

// Syndicate reports whether posts should be cross-posted to X.
func (c Config) Syndicate() bool {
	return !c.X.Credentials().Empty() || c.X.DryRun
}

// Durations returns the parsed TTLs. Callers should Validate first.
func (c Config) Durations() (editor, session, code time.Duration) {
	editor, _ = time.ParseDuration(c.EditorTTL)
	session, _ = time.ParseDuration(c.SessionTTL)
	code, _ = time.ParseDuration(c.CodeTTL)
	return editor, session, code
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger returns a text logger on stderr at the configured level.
func (c Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
