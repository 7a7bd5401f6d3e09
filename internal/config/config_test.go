package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", strings.Repeat("k", 32))
	t.Setenv("STORE_URL", "https://store.example.com/")
	t.Setenv("STORE_SERVICE_KEY", "svc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Auth.AccessTTL != 24*time.Hour || cfg.Auth.Issuer != "road-service-api" {
		t.Fatalf("unexpected auth defaults %+v", cfg.Auth)
	}
	if cfg.Store.Timeout != 10*time.Second || cfg.Store.URL != "https://store.example.com" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Invitation.TTL != 7*24*time.Hour {
		t.Fatalf("unexpected invitation ttl %v", cfg.Invitation.TTL)
	}
	if !cfg.Auth.FailClosedRoles {
		t.Fatal("unknown roles should fail closed by default")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Auth:  AuthConfig{SecretKey: strings.Repeat("k", 32), AccessTTL: time.Hour},
			Store: StoreConfig{URL: "http://store", ServiceKey: "svc"},
			Cache: CacheConfig{Type: "memory"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.SecretKey = "" }},
		{"short secret", func(c *Config) { c.Auth.SecretKey = "short" }},
		{"missing store url", func(c *Config) { c.Store.URL = "" }},
		{"missing service key", func(c *Config) { c.Store.ServiceKey = "" }},
		{"zero ttl", func(c *Config) { c.Auth.AccessTTL = 0 }},
		{"bad cache", func(c *Config) { c.Cache.Type = "memcached" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
