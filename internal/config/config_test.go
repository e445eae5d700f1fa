package config

import (
	"encoding/base64"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SCHEDULE_CONFIG", "HTTP_ADDR", "GRPC_ADDR", "SCHEDULE_PG_DSN", "SCHEDULE_JWT_SECRET",
		"ACCESS_TOKEN_TTL", "ACCESS_TOKEN_TTL_SECONDS", "REFRESH_TOKEN_TTL", "REFRESH_TOKEN_TTL_SECONDS",
		"RATE_LIMIT_BURST", "RATE_LIMIT_PER_SEC", "MAX_BODY_BYTES", "CORS_ORIGINS",
		"TRUSTED_PROXIES", "SCHEDULE_FACULTIES", "BOOTSTRAP_ADMIN_EMAIL", "BOOTSTRAP_ADMIN_NAME", "BOOTSTRAP_ADMIN_PASSWORD"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULE_JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Fatalf("unexpected addrs %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.AccessTokenTTL != 24*time.Hour || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttls %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("dsn must be empty by default, got %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadSecret(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("missing secret must fail")
	}
	t.Setenv("SCHEDULE_JWT_SECRET", "not base64 at all!")
	if _, err := Load(); err == nil {
		t.Fatal("invalid base64 must fail")
	}
	t.Setenv("SCHEDULE_JWT_SECRET", base64.StdEncoding.EncodeToString([]byte("short")))
	if _, err := Load(); err == nil {
		t.Fatal("short key must fail")
	}
}

func TestFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	body := "http_addr: \":7000\"\n" +
		"database_url: postgres://file\n" +
		"jwt_secret: " + testSecret + "\n" +
		"access_token_ttl: 1h\n" +
		"cors_origins:\n  - https://a.example\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCHEDULE_CONFIG", path)
	t.Setenv("SCHEDULE_PG_DSN", "postgres://env")
	t.Setenv("REFRESH_TOKEN_TTL_SECONDS", "60")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("file value lost: %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "postgres://env" {
		t.Fatalf("env must override file: %q", cfg.DatabaseURL)
	}
	if cfg.AccessTokenTTL != time.Hour || cfg.RefreshTokenTTL != time.Minute {
		t.Fatalf("ttls: %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.RateLimitBurst != 5 || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("splitList: %q", got)
	}
}

func TestTrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULE_JWT_SECRET", testSecret)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,fd00::/8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prefixes, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		t.Fatal(err)
	}
	want := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("fd00::/8"),
	}
	if len(prefixes) != len(want) {
		t.Fatalf("prefixes: %v", prefixes)
	}
	for i := range want {
		if prefixes[i] != want[i] {
			t.Fatalf("prefix %d: got %v want %v", i, prefixes[i], want[i])
		}
	}

	for _, bad := range []string{"10.0.0.0/33", "proxy.internal"} {
		t.Setenv("TRUSTED_PROXIES", bad)
		if _, err := Load(); err == nil {
			t.Fatalf("%q must be rejected", bad)
		}
	}
}

func TestMemoryFacultiesAndBootstrapAdmin(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULE_JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	faculties := cfg.MemoryFaculties()
	if len(faculties) != 3 || faculties[0].ID != 1 || faculties[2].Name != "Faculty of History" {
		t.Fatalf("default faculties: %+v", faculties)
	}

	t.Setenv("SCHEDULE_FACULTIES", "Law, Medicine")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@univ.edu")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "123")
	if _, err := Load(); err == nil {
		t.Fatal("short bootstrap password must fail")
	}
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "rootpass")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	faculties = cfg.MemoryFaculties()
	if len(faculties) != 2 || faculties[1].ID != 2 || faculties[1].Name != "Medicine" {
		t.Fatalf("env faculties: %+v", faculties)
	}
	if cfg.BootstrapAdminEmail != "root@univ.edu" || cfg.BootstrapAdminName != "Super Admin" {
		t.Fatalf("bootstrap admin: %+v", cfg)
	}
}
