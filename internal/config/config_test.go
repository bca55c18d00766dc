package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.TTL != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %v", cfg.Auth.TTL)
	}
	if cfg.CSRF.HeaderName != "X-CSRFToken" {
		t.Fatalf("unexpected csrf header %q", cfg.CSRF.HeaderName)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aura.yaml")
	body := strings.Join([]string{
		"server:",
		"  addr: \":9000\"",
		"  trusted_proxies: [\"10.0.0.1\", \"10.0.0.2\"]",
		"database:",
		"  driver: sqlite",
		"  path: " + filepath.Join(dir, "x.db"),
		"ratelimit:",
		"  rps: 2",
		"  burst: 4",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AURA_SERVER__ADDR", ":9100")
	t.Setenv("AURA_AUTH__TTL", "2h")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Fatalf("expected env to win, got %q", cfg.Server.Addr)
	}
	if diff := cmp.Diff([]string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies); diff != "" {
		t.Fatalf("trusted proxies (-want +got):\n%s", diff)
	}
	if cfg.Auth.TTL != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %v", cfg.Auth.TTL)
	}
	if cfg.RateLimit.Burst != 4 {
		t.Fatalf("expected burst 4, got %d", cfg.RateLimit.Burst)
	}
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("AURA_DATABASE__DRIVER", "postgres")
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	t.Setenv("AURA_AUTH__JWT_SECRET", "short")
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("expected error for short jwt secret")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	cases := map[string]string{
		"AURA_SERVER__ADDR":     "server.addr",
		"AURA_AUTH__JWT_SECRET": "auth.jwt_secret",
		"AURA_CONFIG":           "",
	}
	for in, want := range cases {
		if got := envTransformFunc(in); got != want {
			t.Fatalf("envTransformFunc(%q): expected %q, got %q", in, want, got)
		}
	}
}
