package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env         string         `koanf:"env"`
	Server      ServerConfig   `koanf:"server"`
	Database    DatabaseConfig `koanf:"database"`
	Google      GoogleConfig   `koanf:"google"`
	Admin       AdminConfig    `koanf:"admin"`
	Email       EmailConfig    `koanf:"email"`
	PendingAuth PendingConfig  `koanf:"pendingauth"`
	Reminder    ReminderConfig `koanf:"reminder"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

// GoogleConfig holds the OAuth application credentials. The client secret
// lives only here, server-side; it is never written into any response.
type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
}

// AdminConfig is the allowlist of Google accounts granted admin access.
type AdminConfig struct {
	Emails []string `koanf:"emails"`
}

type EmailConfig struct {
	Provider     string `koanf:"provider"`
	FromAddress  string `koanf:"from_address"`
	FromName     string `koanf:"from_name"`
	AppName      string `koanf:"app_name"`
	SupportEmail string `koanf:"support_email"`
	Config       string `koanf:"config"` // provider-specific JSON
}

// PendingConfig selects the pending-auth store backend: memory (default),
// buntdb, or valkey.
type PendingConfig struct {
	Backend    string `koanf:"backend"`
	BuntPath   string `koanf:"bunt_path"`
	ValkeyAddr string `koanf:"valkey_addr"`
}

type ReminderConfig struct {
	Enabled         bool `koanf:"enabled"`
	IntervalMinutes int  `koanf:"interval_minutes"`
	LeadHours       int  `koanf:"lead_hours"`
}

// LoadConfig loads configuration. Loading order:
// 1) config/config.yaml (optional, when APP_CONFIG_FILES is set)
// 2) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 3) Environment variables with prefix SK_ mapped using __ as nested separator,
// e.g. SK_GOOGLE__CLIENT_ID, SK_DATABASE__DSN
func LoadConfig() *AppConfig {
	k := koanf.New(".")

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	loadFiles := strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "1") || strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "true")

	if loadFiles {
		base := filepath.Join(configDir, "config.yaml")
		if _, err := os.Stat(base); err == nil {
			if err := k.Load(file.Provider(base), yaml.Parser()); err != nil {
				log.Warn().Err(err).Msg("config: failed loading base file")
			}
		}
	}

	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "local"
	}
	if loadFiles {
		envFile := filepath.Join(configDir, "config."+envName+".yaml")
		if _, err := os.Stat(envFile); err == nil {
			if err := k.Load(file.Provider(envFile), yaml.Parser()); err != nil {
				log.Warn().Err(err).Msg("config: failed loading env file")
			}
		}
	}

	// SK_GOOGLE__CLIENT_ID -> google.client_id
	_ = k.Load(env.Provider("SK_", "__", func(s string) string {
		return s
	}), nil)

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		log.Warn().Err(err).Msg("config: unmarshal error")
	}
	if c.Env == "" {
		c.Env = envName
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Reminder.IntervalMinutes <= 0 {
		c.Reminder.IntervalMinutes = 60
	}
	if c.Reminder.LeadHours <= 0 {
		c.Reminder.LeadHours = 24
	}
	return &c
}

// DBDSN returns the effective database DSN (config first, then env fallback
// to MIGRATE_DSN so a single variable can drive both).
func (c *AppConfig) DBDSN() string {
	if c != nil && c.Database.DSN != "" {
		return strings.TrimSpace(c.Database.DSN)
	}
	dsn := strings.TrimSpace(os.Getenv("SK_DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MIGRATE_DSN"))
	}
	return dsn
}

// IsAdminEmail reports whether the email is on the allowlist,
// case-insensitively.
func (c *AppConfig) IsAdminEmail(email string) bool {
	for _, allowed := range c.Admin.Emails {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}
