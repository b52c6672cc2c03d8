package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rupeeverse")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("PORT", "")
	t.Setenv("RUPEEVERSE_API_ADDR", "")
	t.Setenv("RUPEEVERSE_DB_MAX_CONNS", "")
	t.Setenv("RUPEEVERSE_FD_SWEEP_EVERY", "")
	t.Setenv("RUPEEVERSE_SYNC_TX_LIMIT", "")
}

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.SupabaseURL != "https://example.supabase.co" {
		t.Fatalf("supabase url kept trailing slash: %q", cfg.SupabaseURL)
	}
	if cfg.DBMaxConns != 16 {
		t.Fatalf("db max conns = %d, want 16", cfg.DBMaxConns)
	}
	if cfg.FDSweepEvery != 10*time.Minute {
		t.Fatalf("sweep interval = %v, want 10m", cfg.FDSweepEvery)
	}
	if cfg.SyncTxLimit != 50 {
		t.Fatalf("sync tx limit = %d, want 50", cfg.SyncTxLimit)
	}
}

func TestLoadAPIFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("RUPEEVERSE_DB_MAX_CONNS", "4")
	t.Setenv("RUPEEVERSE_FD_SWEEP_EVERY", "1m")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q, want :9000", cfg.Addr)
	}
	if cfg.DBMaxConns != 4 {
		t.Fatalf("db max conns = %d, want 4", cfg.DBMaxConns)
	}
	if cfg.FDSweepEvery != time.Minute {
		t.Fatalf("sweep interval = %v, want 1m", cfg.FDSweepEvery)
	}
}

func TestLoadAPIFromEnvRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}
