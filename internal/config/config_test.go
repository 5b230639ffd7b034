package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	v.Set("google.audience", "client-id.apps.googleusercontent.com")
	v.Set("token.signing_secret", "user-secret")
	v.Set("admin.signing_secret", "admin-secret")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("expected default http address, got %s", cfg.HTTPAddress)
	}
	if cfg.TokenIssuer != defaultTokenIssuer || cfg.TokenAudience != defaultTokenAudience {
		t.Fatalf("unexpected token defaults: %+v", cfg)
	}
	if cfg.TokenTTLMinutes != defaultTokenTTLMin || cfg.AdminTTLMinutes != defaultAdminTTLMin {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
	if cfg.NotifyQueueSize != defaultNotifyQueue || cfg.NotifyWorkers != defaultNotifyWorkers {
		t.Fatalf("unexpected notify defaults: %+v", cfg)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	v := NewViper()
	v.Set("google.audience", "client-id")

	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "token.signing_secret") {
		t.Fatalf("expected a missing token secret error, got %v", err)
	}

	v.Set("token.signing_secret", "user-secret")
	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "admin.signing_secret") {
		t.Fatalf("expected a missing admin secret error, got %v", err)
	}
}

func TestLoadRejectsSharedSecrets(t *testing.T) {
	v := NewViper()
	v.Set("google.audience", "client-id")
	v.Set("token.signing_secret", "same-secret")
	v.Set("admin.signing_secret", "same-secret")

	if _, err := Load(v); err == nil {
		t.Fatal("expected an error when admin and user secrets match")
	}
}

func TestLoadRequiresGoogleAudience(t *testing.T) {
	v := NewViper()
	v.Set("token.signing_secret", "user-secret")
	v.Set("admin.signing_secret", "admin-secret")

	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "google.audience") {
		t.Fatalf("expected a missing audience error, got %v", err)
	}
}

func TestLoadRequiresPairedAdminBootstrap(t *testing.T) {
	v := NewViper()
	v.Set("google.audience", "client-id")
	v.Set("token.signing_secret", "user-secret")
	v.Set("admin.signing_secret", "admin-secret")
	v.Set("admin.bootstrap_email", "admin@example.com")

	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "bootstrap") {
		t.Fatalf("expected a paired-bootstrap error, got %v", err)
	}

	v.Set("admin.bootstrap_password", "sufficiently-long-pass")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.AdminBootstrapEmail != "admin@example.com" {
		t.Fatalf("unexpected bootstrap email: %s", cfg.AdminBootstrapEmail)
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	v := NewViper()
	v.Set("google.audience", "client-id")
	v.Set("token.signing_secret", "user-secret")
	v.Set("admin.signing_secret", "admin-secret")
	v.Set("token.ttl_minutes", 0)

	if _, err := Load(v); err == nil {
		t.Fatal("expected an error for a non-positive ttl")
	}
}
