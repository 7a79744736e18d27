// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Zachkp/folio/internal/contact"
)

type Config struct {
	Port         string
	GinMode      string
	LogLevel     string
	DBPath       string
	ContentPath  string // empty serves the embedded content
	WatchContent bool

	AdminUsername string
	AdminPassword string

	SessionIdle   time.Duration
	// UnwatchedIdle drops sessions whose page never opened a socket.
	UnwatchedIdle time.Duration
	MaxSessions   int

	SMTP contact.SMTPConfig
}

// Load reads envFiles (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := &Config{
		Port:          getenv("PORT", "8080"),
		GinMode:       getenv("GIN_MODE", "release"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		DBPath:        getenv("DB_PATH", "folio.db"),
		ContentPath:   os.Getenv("CONTENT_PATH"),
		AdminUsername: getenv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SMTP: contact.SMTPConfig{
			Host: getenv("SMTP_HOST", "smtp.gmail.com"),
			Port: getenv("SMTP_PORT", "587"),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			To:   os.Getenv("TO_EMAIL"),
		},
	}

	var err error
	if c.WatchContent, err = getbool("WATCH_CONTENT", false); err != nil {
		return nil, err
	}
	if c.SessionIdle, err = getduration("SESSION_IDLE", 30*time.Minute); err != nil {
		return nil, err
	}
	if c.UnwatchedIdle, err = getduration("SESSION_UNWATCHED_IDLE", 2*time.Minute); err != nil {
		return nil, err
	}
	if c.MaxSessions, err = getint("MAX_SESSIONS", 10000); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.WatchContent && c.ContentPath == "" {
		return errors.New("WATCH_CONTENT requires CONTENT_PATH")
	}
	if c.SessionIdle <= 0 {
		return errors.New("SESSION_IDLE must be positive")
	}
	return nil
}

// AdminEnabled reports whether the admin area can be logged into.
func (c *Config) AdminEnabled() bool {
	return c.AdminPassword != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
