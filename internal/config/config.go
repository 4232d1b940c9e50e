package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server settings, read from the environment.
type Config struct {
	// HTTP server
	Port string

	// Database
	DBPath string

	// Sessions
	SessionSecret   string
	SessionDuration time.Duration
	SecureCookie    bool

	// Presentation assets
	TemplateDir string
	StaticDir   string

	// Optional startup seeding
	AdminUser     string
	AdminPassword string
}

// Load reads the configuration from the environment, falling back to
// development defaults.
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "finance.db"),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionDuration: getEnvDuration("SESSION_DURATION", 30*24*time.Hour),
		SecureCookie:    getEnvBool("SECURE_COOKIE", false),
		TemplateDir:     getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:       getEnv("STATIC_DIR", "web/static"),
		AdminUser:       getEnv("ADMIN_USER", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	if c.SessionSecret == "" {
		errors = append(errors, "SESSION_SECRET must be set")
	}

	if c.SessionDuration < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session duration %v: must be at least 1 minute", c.SessionDuration))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
