package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailConfig holds the IMAP connection and mailbox-layout settings.
type MailConfig struct {
	// Host and Port of the IMAP server.
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// Username for authentication. The password is resolved from the OS
	// keyring first; Password is the plain-text fallback for headless
	// deployments.
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// TLS selects implicit TLS; when false the client uses STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// DispatchFolder is the mailbox receiving new dispatch emails.
	DispatchFolder string `mapstructure:"dispatch_folder" yaml:"dispatch_folder"`

	// StatusLabels are the label folders scanned by the reconciliation
	// pass. Names must match the classification vocabulary; anything
	// else resolves to StatusUnknown and is skipped.
	StatusLabels []string `mapstructure:"status_labels" yaml:"status_labels"`

	// Sender restricts searches to dispatch emails from this address.
	// Empty disables the filter.
	Sender string `mapstructure:"sender" yaml:"sender"`
}

// ImportConfig holds the poll-cycle tuning knobs.
type ImportConfig struct {
	// PollIntervalSec is how often the background poller runs a cycle.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// FetchLimit bounds how many messages one cycle fetches (most
	// recent first) when the scope is large.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// MaxCycleMessages is the safety cap for an automatic cycle. A
	// scope larger than this is reported and skipped so a forgotten
	// mailbox cannot trigger a bulk import unattended.
	MaxCycleMessages int `mapstructure:"max_cycle_messages" yaml:"max_cycle_messages"`

	// SinceDays limits scheduled searches to recent messages.
	SinceDays int `mapstructure:"since_days" yaml:"since_days"`

	// ManualWindowDays is the search window for manual single-number
	// imports, which also cover already-read messages.
	ManualWindowDays int `mapstructure:"manual_window_days" yaml:"manual_window_days"`

	// RecentCount is how many recent messages the inspect report lists.
	RecentCount int `mapstructure:"recent_count" yaml:"recent_count"`
}

// TimeoutConfig holds the per-stage network budgets, in seconds.
type TimeoutConfig struct {
	ConnectSec int `mapstructure:"connect_sec" yaml:"connect_sec"`
	AuthSec    int `mapstructure:"auth_sec" yaml:"auth_sec"`

	// OpSec bounds each IMAP exchange after authentication (select,
	// search, fetch, store).
	OpSec int `mapstructure:"op_sec" yaml:"op_sec"`

	// CycleSec bounds a whole import or reconciliation pass.
	CycleSec int `mapstructure:"cycle_sec" yaml:"cycle_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail     MailConfig    `mapstructure:"mail" yaml:"mail"`
	Import   ImportConfig  `mapstructure:"import" yaml:"import"`
	Timeouts TimeoutConfig `mapstructure:"timeouts" yaml:"timeouts"`
	DBPath   string        `mapstructure:"db_path" yaml:"db_path"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/fieldsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "fieldsync", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		Mail: MailConfig{
			Host:           "imap.gmail.com",
			Port:           "993",
			TLS:            true,
			DispatchFolder: "INBOX",
			StatusLabels: []string{
				"escalation",
				"quote-approval",
				"quote-rejected",
				"quote-submitted",
				"reassignment-of",
				"invoice-rejected",
				"cancellation",
			},
		},
		Import: ImportConfig{
			PollIntervalSec:  600,
			FetchLimit:       100,
			MaxCycleMessages: 50,
			SinceDays:        7,
			ManualWindowDays: 30,
			RecentCount:      25,
		},
		Timeouts: TimeoutConfig{
			ConnectSec: 5,
			AuthSec:    10,
			OpSec:      30,
			CycleSec:   120,
		},
		DBPath:   filepath.Join(home, ".local", "share", "fieldsync", "fieldsync.db"),
		LogLevel: "info",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mail.host", defaults.Mail.Host)
	v.SetDefault("mail.port", defaults.Mail.Port)
	v.SetDefault("mail.tls", defaults.Mail.TLS)
	v.SetDefault("mail.dispatch_folder", defaults.Mail.DispatchFolder)
	v.SetDefault("mail.status_labels", defaults.Mail.StatusLabels)
	v.SetDefault("import.poll_interval_sec", defaults.Import.PollIntervalSec)
	v.SetDefault("import.fetch_limit", defaults.Import.FetchLimit)
	v.SetDefault("import.max_cycle_messages", defaults.Import.MaxCycleMessages)
	v.SetDefault("import.since_days", defaults.Import.SinceDays)
	v.SetDefault("import.manual_window_days", defaults.Import.ManualWindowDays)
	v.SetDefault("import.recent_count", defaults.Import.RecentCount)
	v.SetDefault("timeouts.connect_sec", defaults.Timeouts.ConnectSec)
	v.SetDefault("timeouts.auth_sec", defaults.Timeouts.AuthSec)
	v.SetDefault("timeouts.op_sec", defaults.Timeouts.OpSec)
	v.SetDefault("timeouts.cycle_sec", defaults.Timeouts.CycleSec)
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", cfg.Mail)
	v.Set("import", cfg.Import)
	v.Set("timeouts", cfg.Timeouts)
	v.Set("db_path", cfg.DBPath)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
