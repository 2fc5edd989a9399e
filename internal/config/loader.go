package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath     string
	LogLevel       string
	ArchiveDir     string
	SMTPHost       string
	SMTPPort       int
	MailFrom       string
	MaxMessageSize int
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./listrelay.toml", "Path to configuration file")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.ArchiveDir, "archive-dir", "", "Archive directory (empty disables archiving)")
	flag.StringVar(&f.SMTPHost, "smtp-host", "", "Outbound relay host")
	flag.IntVar(&f.SMTPPort, "smtp-port", 0, "Outbound relay port")
	flag.StringVar(&f.MailFrom, "mail-from", "", "Envelope sender for relayed mail")
	flag.IntVar(&f.MaxMessageSize, "max-message-size", 0, "Maximum message size in bytes")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// Values absent from the file keep their defaults. If the file does not
// exist, returns the default configuration.
func Load(path string) (Config, error) {
	fileConfig := FileConfig{Listrelay: Default()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig.Listrelay, nil
		}
		return fileConfig.Listrelay, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return fileConfig.Listrelay, fmt.Errorf("parsing config file: %w", err)
	}

	return fileConfig.Listrelay, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}

	if f.ArchiveDir != "" {
		cfg.ArchiveDir = f.ArchiveDir
	}

	if f.SMTPHost != "" {
		cfg.SMTP.Host = f.SMTPHost
	}

	if f.SMTPPort > 0 {
		cfg.SMTP.Port = f.SMTPPort
	}

	if f.MailFrom != "" {
		cfg.SMTP.MailFrom = f.MailFrom
	}

	if f.MaxMessageSize > 0 {
		cfg.Limits.MaxMessageSize = f.MaxMessageSize
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies environment and flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}
