// Package config loads the application settings from environment
// variables, once at startup. The loaded Config is treated as immutable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	// Server
	Port int

	// Database
	DBPath string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// AdminEmail, when set, grants the admin role to the account that
	// signs up with this address. Seeds the first admin.
	AdminEmail string

	// Roster policy. True keeps admins from blocking, demoting, or
	// deleting one another.
	ProtectPeerAdmins bool

	// Login throttle, per client address.
	LoginRatePerMinute int
	LoginBurst         int
}

// Load reads the configuration from the environment. SESSION_SECRET is the
// only required variable; everything else has a development default.
func Load() (*Config, error) {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("config: required environment variable SESSION_SECRET is not set")
	}

	cfg := &Config{
		Port:               getEnvInt("PORT", 8080),
		DBPath:             getEnvString("DB_PATH", "todohub.db"),
		SessionSecret:      secret,
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		AdminEmail:         getEnvString("ADMIN_EMAIL", ""),
		ProtectPeerAdmins:  getEnvBool("PROTECT_PEER_ADMINS", true),
		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         getEnvInt("LOGIN_BURST", 10),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("config: SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.LoginRatePerMinute <= 0 || cfg.LoginBurst <= 0 {
		return nil, fmt.Errorf("config: login rate settings must be positive")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
