// Package config loads runtime settings for the schedule services.
//
// Values come from an optional YAML file named by SCHEDULE_CONFIG and are
// then overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"schedulehub.org/internal/auth"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	DatabaseURL     string        `yaml:"database_url"`
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustedProxies holds IPs or CIDRs of reverse proxies allowed to set
	// X-Forwarded-For.
	TrustedProxies  []string      `yaml:"trusted_proxies"`

	// Faculties are loaded into the in-memory stores when no DSN is set.
	// With PostgreSQL the faculties table is authoritative.
	Faculties []string `yaml:"faculties"`

	// A bootstrap SUPER_ADMIN is created at startup when an email is set.
	// The password is only read from the environment.
	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email"`
	BootstrapAdminName     string `yaml:"bootstrap_admin_name"`
	BootstrapAdminPassword string `yaml:"-"`
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":9090",
		AccessTokenTTL:  auth.DefaultAccessTTL,
		RefreshTokenTTL: auth.DefaultRefreshTTL,
		RateLimitBurst:  20,
		RateLimitPerSec: 10,
		MaxBodyBytes:    1 << 20,
		Faculties: []string{
			"Faculty of Physics",
			"Faculty of Mathematics",
			"Faculty of History",
		},
		BootstrapAdminName: "Super Admin",
	}
}

// Load reads the optional YAML file, applies environment overrides and
// validates the result.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("SCHEDULE_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file %s: %w", path, err)
	}
	defer file.Close()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getenv("GRPC_ADDR", cfg.GRPCAddr)
	cfg.DatabaseURL = getenv("SCHEDULE_PG_DSN", cfg.DatabaseURL)
	cfg.JWTSecret = getenv("SCHEDULE_JWT_SECRET", cfg.JWTSecret)
	cfg.AccessTokenTTL = getenvDuration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.RefreshTokenTTL = getenvDuration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL)
	cfg.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.RateLimitPerSec = getenvFloat("RATE_LIMIT_PER_SEC", cfg.RateLimitPerSec)
	cfg.MaxBodyBytes = int64(getenvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("SCHEDULE_FACULTIES"); v != "" {
		cfg.Faculties = splitList(v)
	}
	cfg.BootstrapAdminEmail = getenv("BOOTSTRAP_ADMIN_EMAIL", cfg.BootstrapAdminEmail)
	cfg.BootstrapAdminName = getenv("BOOTSTRAP_ADMIN_NAME", cfg.BootstrapAdminName)
	cfg.BootstrapAdminPassword = getenv("BOOTSTRAP_ADMIN_PASSWORD", cfg.BootstrapAdminPassword)
}

// Validate rejects configurations the API cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: SCHEDULE_JWT_SECRET is required")
	}
	if _, err := auth.DecodeSecret(c.JWTSecret); err != nil {
		return fmt.Errorf("config: SCHEDULE_JWT_SECRET: %w", err)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitPerSec <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: MAX_BODY_BYTES must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if strings.TrimSpace(c.BootstrapAdminEmail) != "" && len(c.BootstrapAdminPassword) < auth.MinPasswordLength {
		return fmt.Errorf("config: BOOTSTRAP_ADMIN_PASSWORD must be at least %d characters", auth.MinPasswordLength)
	}
	return nil
}

// MemoryFaculties numbers Faculties from 1 in list order, the same ids the
// seed migration produces on an empty database.
func (c Config) MemoryFaculties() []auth.Faculty {
	out := make([]auth.Faculty, 0, len(c.Faculties))
	for _, name := range c.Faculties {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		out = append(out, auth.Faculty{ID: int64(len(out) + 1), Name: name})
	}
	return out
}

// TrustedProxyPrefixes parses TrustedProxies; a bare address becomes a
// single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
