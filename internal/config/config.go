// Package config provides configuration management for the list delivery tool.
package config

import (
	"errors"
	"fmt"
	"time"
)

// FileConfig is the top-level wrapper for the shared configuration file.
// This allows list-deliver and related tools to share a single config file.
type FileConfig struct {
	Listrelay Config `toml:"listrelay"`
}

// Config holds the complete delivery pipeline configuration.
type Config struct {
	Recipients          []string        `toml:"recipients"`
	RejectNonRecipients bool            `toml:"reject_non_recipients"`
	SetHeaders          []HeaderRule    `toml:"set_headers"`
	HeaderWhitelist     []string        `toml:"header_whitelist"`
	ArchiveDir          string          `toml:"archive_dir"`
	Limits              LimitsConfig    `toml:"limits"`
	SMTP                SMTPConfig      `toml:"smtp"`
	RateLimit           RateLimitConfig `toml:"ratelimit"`
	Logging             LoggingConfig   `toml:"logging"`
	Metrics             MetricsConfig   `toml:"metrics"`
}

// HeaderRule is a single replace-or-append header rewrite rule.
// Rules are applied in the order they appear in the configuration.
type HeaderRule struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// LimitsConfig defines resource limits for the pipeline.
type LimitsConfig struct {
	MaxMessageSize int `toml:"max_message_size"`
}

// SMTPConfig holds settings for the outbound relay connection.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	MailFrom string `toml:"mail_from"`
	Helo     string `toml:"helo"`
	Timeout  string `toml:"timeout"`
}

// RateLimitConfig holds settings for the per-sender rate limiter.
type RateLimitConfig struct {
	Enabled   bool   `toml:"enabled"`
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	Window    string `toml:"window"`
}

// LoggingConfig selects the log level and destination.
// An empty File logs to stderr.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// MetricsConfig holds configuration for pushing metrics to a Prometheus
// Pushgateway. Metrics are disabled when PushURL is empty.
type MetricsConfig struct {
	PushURL string `toml:"push_url"`
	Job     string `toml:"job"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		RejectNonRecipients: true,
		Limits: LimitsConfig{
			MaxMessageSize: 26214400, // 25 MB
		},
		SMTP: SMTPConfig{
			Host:    "localhost",
			Port:    25,
			Helo:    "localhost",
			Timeout: "1m",
		},
		RateLimit: RateLimitConfig{
			Window: "60s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Job: "list-deliver",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.SMTP.Host == "" {
		return errors.New("smtp host is required")
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid smtp port %d", c.SMTP.Port)
	}

	if c.SMTP.MailFrom == "" {
		return errors.New("smtp mail_from is required")
	}

	if c.Limits.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}

	if c.SMTP.Timeout != "" {
		if _, err := time.ParseDuration(c.SMTP.Timeout); err != nil {
			return fmt.Errorf("invalid smtp timeout: %w", err)
		}
	}

	for i, rule := range c.SetHeaders {
		if rule.Name == "" {
			return fmt.Errorf("set_headers rule %d: name is required", i)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RedisAddr == "" {
			return errors.New("ratelimit redis_addr is required when rate limiting is enabled")
		}
		if c.RateLimit.Window != "" {
			if _, err := time.ParseDuration(c.RateLimit.Window); err != nil {
				return fmt.Errorf("invalid ratelimit window: %w", err)
			}
		}
	}

	if c.Metrics.PushURL != "" && c.Metrics.Job == "" {
		return errors.New("metrics job is required when push_url is set")
	}

	return nil
}

// TimeoutDuration returns the SMTP command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *SMTPConfig) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

// Addr returns the host:port address of the outbound relay.
func (c *SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WindowDuration returns the rate limit window as a time.Duration.
// Returns 60 seconds if not configured or invalid.
func (c *RateLimitConfig) WindowDuration() time.Duration {
	if c.Window == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.Window)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
