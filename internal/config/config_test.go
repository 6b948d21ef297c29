package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AdminAPIKey:          "key",
		WebhookSecret:        "secret",
		PlatformBaseURL:      "https://api.example.com/v1",
		PlatformAccessToken:  "token",
		PostgresDB:           "nuvemsync",
		PostgresHost:         "localhost",
		LockLease:            DefaultLockLease,
		IdempotencyRetention: DefaultIdempotencyRetention,
		SyncMaxAttempts:      5,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name  string
		mutate func(*Config)
	}{
		{"missing admin key", func(c *Config) { c.AdminAPIKey = "" }},
		{"missing webhook secret", func(c *Config) { c.WebhookSecret = "" }},
		{"missing access token", func(c *Config) { c.PlatformAccessToken = "" }},
		{"zero lease", func(c *Config) { c.LockLease = 0 }},
		{"zero retention", func(c *Config) { c.IdempotencyRetention = 0 }},
		{"zero attempts", func(c *Config) { c.SyncMaxAttempts = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "key")
	t.Setenv("WEBHOOK_SECRET", "secret")
	t.Setenv("PLATFORM_ACCESS_TOKEN", "token")
	t.Setenv("LOCK_LEASE_MINUTES", "10")
	t.Setenv("IDEMPOTENCY_RETENTION_DAYS", "7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LockLease != 10*time.Minute {
		t.Fatalf("unexpected lease %v", cfg.LockLease)
	}
	if cfg.IdempotencyRetention != 7*24*time.Hour {
		t.Fatalf("unexpected retention %v", cfg.IdempotencyRetention)
	}
	if cfg.APIPort != 6540 {
		t.Fatalf("unexpected default port %d", cfg.APIPort)
	}
}

func TestWebhookSecretFor(t *testing.T) {
	cfg := validConfig()
	cfg.ActiveCampaignWebhookSecret = "ac-secret"

	if got := cfg.WebhookSecretFor("nuvemshop"); got != "secret" {
		t.Fatalf("unexpected secret %q", got)
	}
	if got := cfg.WebhookSecretFor("activecampaign"); got != "ac-secret" {
		t.Fatalf("unexpected secret %q", got)
	}
	cfg.ActiveCampaignWebhookSecret = ""
	if got := cfg.WebhookSecretFor("activecampaign"); got != "" {
		t.Fatalf("expected empty secret for unconfigured source, got %q", got)
	}
}
