package cfg

import (
	"strings"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"--timezone", "UTC", "--db-path", "./data/bulletin.db"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}

	if cfg.DBPath != "./data/bulletin.db" {
		t.Errorf("Expected db path './data/bulletin.db', got '%s'", cfg.DBPath)
	}
	if cfg.SchedulerInterval != time.Hour {
		t.Errorf("Expected scheduler interval 1h, got %v", cfg.SchedulerInterval)
	}
	if cfg.LLMTimeout <= 0 {
		t.Errorf("Expected positive LLM timeout, got %v", cfg.LLMTimeout)
	}
	if cfg.RunLockTTL != 30*time.Minute {
		t.Errorf("Expected run lock ttl 30m, got %v", cfg.RunLockTTL)
	}
	if cfg.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	cfg, err := Load([]string{
		"--timezone", "UTC",
		"--port", "9090",
		"--llm-timeout", "45",
		"--llm-max-retries", "0",
		"--max-upload-mb", "5",
		"--llm-provider", "anthropic",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.LLMTimeout != 45*time.Second {
		t.Errorf("Expected llm timeout 45s, got %v", cfg.LLMTimeout)
	}
	if cfg.LLMMaxRetries != 0 {
		t.Errorf("Expected 0 retries, got %d", cfg.LLMMaxRetries)
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Errorf("Expected 5MB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.LLMProvider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got '%s'", cfg.LLMProvider)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	_, err := Load([]string{"--timezone", "UTC", "--llm-provider", "mistral"})
	if err == nil {
		t.Error("Expected error for unknown LLM provider")
	}
}

func TestLoadHelpReturnsNil(t *testing.T) {
	cfg, err := Load([]string{"--help"})
	if err != nil {
		t.Fatalf("Expected no error for help, got %v", err)
	}
	if cfg != nil {
		t.Error("Expected nil config when help is requested")
	}
}

func TestValidateAdminRequiresSecret(t *testing.T) {
	cfg := validCfg()
	cfg.AdminPassword = "secret"
	cfg.JWTSecret = "short"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error for short JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt secret") {
		t.Errorf("Expected jwt secret error, got '%s'", err.Error())
	}

	cfg.JWTSecret = strings.Repeat("k", 32)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
	if !cfg.AdminEnabled() {
		t.Error("Expected admin to be enabled")
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Cfg)
	}{
		{"zero workers", func(c *Cfg) { c.WorkerCount = 0 }},
		{"negative retries", func(c *Cfg) { c.LLMMaxRetries = -1 }},
		{"zero llm timeout", func(c *Cfg) { c.LLMTimeout = 0 }},
		{"zero rate limit", func(c *Cfg) { c.RateLimitRPS = 0 }},
		{"negative retention", func(c *Cfg) { c.LogRetentionDays = -3 }},
		{"lock ttl shorter than a run", func(c *Cfg) { c.RunLockTTL = 3 * time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCfg()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestMaxRunDuration(t *testing.T) {
	cfg := validCfg()
	cfg.LLMRetryBackoff = 2 * time.Second

	// fetch 30s, three 1m attempts, then 2s and 4s between them
	expected := 30*time.Second + 3*time.Minute + 6*time.Second
	if got := cfg.MaxRunDuration(); got != expected {
		t.Errorf("Expected max run duration %v, got %v", expected, got)
	}

	cfg.LLMMaxRetries = 4
	cfg.LLMRetryBackoff = 10 * time.Second

	// delays of 10s, 20s, then capped at 30s twice
	expected = 30*time.Second + 5*time.Minute + 90*time.Second
	if got := cfg.MaxRunDuration(); got != expected {
		t.Errorf("Expected capped max run duration %v, got %v", expected, got)
	}
}

func validCfg() *Cfg {
	return &Cfg{
		DBPath:            "./data/test.db",
		MaxUploadMB:       20,
		Port:              "8080",
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		WorkerCount:       2,
		SchedulerInterval: time.Hour,
		FetchTimeout:      30 * time.Second,
		RunLockTTL:        30 * time.Minute,
		LogRetentionDays:  30,
		StaleAfterDays:    1,
		AdminUsername:     "admin",
		JWTTTL:            time.Hour,
		LLMMaxRetries:     2,
		LLMTimeout:        time.Minute,
		LLMMaxTokens:      1024,
		LLMMaxInputChars:  1000,
	}
}
