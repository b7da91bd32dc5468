package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Mail.Port != "993" || !cfg.Mail.TLS {
		t.Errorf("Mail defaults = %+v", cfg.Mail)
	}
	if cfg.Mail.DispatchFolder != "INBOX" {
		t.Errorf("DispatchFolder = %q, want INBOX", cfg.Mail.DispatchFolder)
	}
	if len(cfg.Mail.StatusLabels) != 7 {
		t.Errorf("StatusLabels = %v, want all seven labels", cfg.Mail.StatusLabels)
	}
	if cfg.Import.PollIntervalSec != 600 {
		t.Errorf("PollIntervalSec = %d, want 600", cfg.Import.PollIntervalSec)
	}
	if cfg.Import.MaxCycleMessages != 50 {
		t.Errorf("MaxCycleMessages = %d, want 50", cfg.Import.MaxCycleMessages)
	}
	if cfg.Timeouts.ConnectSec != 5 || cfg.Timeouts.AuthSec != 10 ||
		cfg.Timeouts.OpSec != 30 || cfg.Timeouts.CycleSec != 120 {
		t.Errorf("Timeouts = %+v", cfg.Timeouts)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsync", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	cfg.Mail.Host = "mail.example.com"
	cfg.Mail.Username = "ops@example.com"
	cfg.Mail.Sender = "dispatch@client.com"
	cfg.Import.PollIntervalSec = 300
	cfg.LogLevel = "debug"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() after save error: %v", err)
	}

	if loaded.Mail.Host != "mail.example.com" {
		t.Errorf("Host = %q, want mail.example.com", loaded.Mail.Host)
	}
	if loaded.Mail.Sender != "dispatch@client.com" {
		t.Errorf("Sender = %q", loaded.Mail.Sender)
	}
	if loaded.Import.PollIntervalSec != 300 {
		t.Errorf("PollIntervalSec = %d, want 300", loaded.Import.PollIntervalSec)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", loaded.LogLevel)
	}
	if loaded.Timeouts.CycleSec != 120 {
		t.Errorf("CycleSec = %d, want default 120", loaded.Timeouts.CycleSec)
	}
}
