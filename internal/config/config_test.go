package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "JWT_SECRET", "RATE_LIMIT_WHITELIST"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.SQLitePath != "./data/nest.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
}

func TestLoadWhitelist(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 192.168.0.0/16 ,")

	cfg := Load()

	want := []string{"10.0.0.1", "192.168.0.0/16"}
	if len(cfg.RateLimitWhitelist) != len(want) {
		t.Fatalf("whitelist = %v, want %v", cfg.RateLimitWhitelist, want)
	}
	for i := range want {
		if cfg.RateLimitWhitelist[i] != want[i] {
			t.Fatalf("whitelist = %v, want %v", cfg.RateLimitWhitelist, want)
		}
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without DATABASE_URL in production")
		}
	}()
	Load()
}
