// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package config loads layered credkeep configuration.
//
// Precedence, lowest first: flag defaults, the YAML file named by --config,
// CREDKEEP_* environment variables, and flags set on the command line.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/credkeep/credkeep/internal/auth"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "CREDKEEP_"

// InsecureJWTSecret is the placeholder secret shipped in sample configs.
// It is accepted only when env is development.
const InsecureJWTSecret = "change-me-in-production"

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Default values for configuration keys.
const (
	DefaultHTTPAddr              = ":3000"
	DefaultMetricsAddr           = "127.0.0.1:9100"
	DefaultJWTExpiresIn          = "7d"
	DefaultVerificationExpiresIn = "24h"
	DefaultFrontendURL           = "http://localhost:3000"
	DefaultSMTPPort              = 587
	DefaultCleanupInterval       = time.Hour
	DefaultLogFormat             = "json"
	DefaultLogLevel              = "info"
)

// Config is the full runtime configuration.
type Config struct {
	Env         string `koanf:"env"`
	HTTPAddr    string `koanf:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`

	JWTSecret             string `koanf:"jwt_secret"`
	JWTExpiresIn          string `koanf:"jwt_expires_in"`
	VerificationExpiresIn string `koanf:"verification_expires_in"`
	FrontendURL           string `koanf:"frontend_url"`
	MailPolicy            string `koanf:"mail_policy"`

	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	AutoMigrate     bool          `koanf:"auto_migrate"`

	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`
}

// RegisterFlags adds one flag per configuration key to fs. Flag names use
// dashes; Load maps them onto the underscore keys.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", EnvDevelopment, "deployment environment (development, production, test)")
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("jwt-secret", "", "HS256 secret for session tokens")
	fs.String("jwt-expires-in", DefaultJWTExpiresIn, "session token lifetime (e.g. 7d, 12h)")
	fs.String("verification-expires-in", DefaultVerificationExpiresIn, "verification link lifetime (e.g. 24h, 30m)")
	fs.String("frontend-url", DefaultFrontendURL, "base URL of verification links")
	fs.String("mail-policy", string(auth.MailInTransaction), "verification send placement (in_transaction or after_commit)")
	fs.String("smtp-host", "", "SMTP host (empty = print emails to the console)")
	fs.Int("smtp-port", DefaultSMTPPort, "SMTP port")
	fs.String("smtp-user", "", "SMTP username")
	fs.String("smtp-password", "", "SMTP password")
	fs.String("smtp-from", "", "sender address of verification emails")
	fs.Duration("cleanup-interval", DefaultCleanupInterval, "expired token sweep interval (0 = disabled)")
	fs.Bool("auto-migrate", true, "apply pending schema migrations when serve starts")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
}

// Load layers the configuration sources. path may be empty. Keys from fs
// fill in whatever the file and environment left unset.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}

// envKey maps CREDKEEP_SMTP_HOST to smtp_host.
func envKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
}

func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if f.Name == "config" {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
}

// ValidateDatabase checks the keys needed to reach PostgreSQL and log.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return invalid("database_url", "database_url is required")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return invalid("log_format", "log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level", "log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Validate reports the first invalid key.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return invalid("env", "env must be development, production or test, got %q", c.Env)
	}
	if c.HTTPAddr == "" {
		return invalid("http_addr", "http_addr is required")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return invalid("jwt_secret", "jwt_secret is required")
	}
	if c.JWTSecret == InsecureJWTSecret && c.Env != EnvDevelopment {
		return invalid("jwt_secret", "jwt_secret must be changed outside development")
	}
	if err := validateBaseURL(c.FrontendURL); err != nil {
		return invalid("frontend_url", "frontend_url must be an absolute http(s) URL, got %q", c.FrontendURL)
	}
	if _, err := auth.ParseMailPolicy(c.MailPolicy); err != nil {
		return invalid("mail_policy", "mail_policy must be %q or %q, got %q",
			auth.MailInTransaction, auth.MailAfterCommit, c.MailPolicy)
	}
	if c.JWTTTL() == 0 {
		return invalid("jwt_expires_in", "jwt_expires_in must be longer than zero, got %q", c.JWTExpiresIn)
	}
	if c.VerificationTTL() == 0 {
		return invalid("verification_expires_in",
			"verification_expires_in must be longer than zero, got %q", c.VerificationExpiresIn)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return invalid("smtp_port", "smtp_port must be between 1 and 65535, got %d", c.SMTPPort)
	}
	if c.CleanupInterval < 0 {
		return invalid("cleanup_interval", "cleanup_interval cannot be negative")
	}
	return nil
}

// JWTTTL is the parsed session token lifetime. Malformed values fall back
// to 24h; a parsed zero is rejected by Validate.
func (c *Config) JWTTTL() time.Duration {
	return auth.ParseExpiry(c.JWTExpiresIn)
}

// VerificationTTL is the parsed verification link lifetime. Malformed values
// fall back to 24h; a parsed zero is rejected by Validate.
func (c *Config) VerificationTTL() time.Duration {
	return auth.ParseExpiry(c.VerificationExpiresIn)
}

// Policy returns the mail policy. Call after Validate.
func (c *Config) Policy() auth.MailPolicy {
	policy, err := auth.ParseMailPolicy(c.MailPolicy)
	if err != nil {
		return auth.MailInTransaction
	}
	return policy
}

// FrontendBase is FrontendURL without a trailing slash.
func (c *Config) FrontendBase() string {
	return strings.TrimRight(c.FrontendURL, "/")
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return oops.Errorf("not an absolute http(s) URL")
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}
