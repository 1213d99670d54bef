package config

import (
	"testing"
	"time"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"-token-secret", "s3cr3t", "-port", "8080"})
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.Lang != "en" {
		t.Fatalf("lang = %q", cfg.Lang)
	}
}

func TestParseArgsRequiresSecret(t *testing.T) {
	t.Setenv("NEWSROOM_TOKEN_SECRET", "")
	if _, err := ParseArgs(nil); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestParseArgsEnvFallback(t *testing.T) {
	t.Setenv("NEWSROOM_TOKEN_SECRET", "from-env")
	t.Setenv("NEWSROOM_PORT", "9000")
	t.Setenv("NEWSROOM_BASE_URL", "https://newsroom.example.org/")
	t.Setenv("NEWSROOM_DB_URL", "/tmp/x.sqlite")

	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs returned error: %v", err)
	}
	if cfg.TokenSecret != "from-env" {
		t.Fatalf("secret = %q", cfg.TokenSecret)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.BaseURL != "https://newsroom.example.org" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.DBUrl != "/tmp/x.sqlite" {
		t.Fatalf("db url = %q", cfg.DBUrl)
	}
}
