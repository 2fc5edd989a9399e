package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over TOML config but are overridden
// by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("LISTRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LISTRELAY_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("LISTRELAY_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("LISTRELAY_SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("LISTRELAY_SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("LISTRELAY_SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("LISTRELAY_REDIS_ADDR"); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
	if v := os.Getenv("LISTRELAY_METRICS_PUSH_URL"); v != "" {
		cfg.Metrics.PushURL = v
	}
	return cfg
}
