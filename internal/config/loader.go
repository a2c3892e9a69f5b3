package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the appointment
// service.
type Config struct {
	HTTPPort         int
	SQLiteDSN        string
	MigrationDir     string
	JWTSecret        string
	TokenTTL         time.Duration
	SMTPAddr         string
	SMTPFrom         string
	ReminderInterval time.Duration
	ArchiveInterval  time.Duration
}

// MailEnabled reports whether an SMTP endpoint has been configured.
func (c Config) MailEnabled() bool {
	return c.SMTPAddr != "" && c.SMTPFrom != ""
}

// Load parses configuration values from the current process environment.
//
// A .env file in the working directory is merged in first when present. The
// loader applies defaults for optional fields while collecting missing and
// invalid entries so a single error reports every problem at once.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "file:appointments.db",
		MigrationDir:     "migrations",
		TokenTTL:         24 * time.Hour,
		ReminderInterval: time.Minute,
		ArchiveInterval:  time.Hour,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("APPOINTMENT_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "APPOINTMENT_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("APPOINTMENT_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if dir := strings.TrimSpace(os.Getenv("APPOINTMENT_MIGRATION_DIR")); dir != "" {
		cfg.MigrationDir = dir
	}

	if secret := strings.TrimSpace(os.Getenv("APPOINTMENT_JWT_SECRET")); secret == "" {
		missing = append(missing, "APPOINTMENT_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("APPOINTMENT_TOKEN_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "APPOINTMENT_TOKEN_TTL")
		} else {
			cfg.TokenTTL = ttl
		}
	}

	cfg.SMTPAddr = strings.TrimSpace(os.Getenv("APPOINTMENT_SMTP_ADDR"))
	cfg.SMTPFrom = strings.TrimSpace(os.Getenv("APPOINTMENT_SMTP_FROM"))

	if value := strings.TrimSpace(os.Getenv("APPOINTMENT_REMINDER_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "APPOINTMENT_REMINDER_INTERVAL")
		} else {
			cfg.ReminderInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("APPOINTMENT_ARCHIVE_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "APPOINTMENT_ARCHIVE_INTERVAL")
		} else {
			cfg.ArchiveInterval = interval
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
