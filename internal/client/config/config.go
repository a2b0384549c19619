package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the health client.
//
// Timeouts and grace periods are the knobs of the auth and refresh state
// machines; the remaining fields locate the backend, the local database and
// the export target.
type Config struct {
	BackendURL   string
	AnonKey      string
	DatabasePath string

	OnlineCheckInterval time.Duration
	AuthGracePeriod     time.Duration
	FastSessionTimeout  time.Duration
	UserIDTimeout       time.Duration
	BootWatchdogTimeout time.Duration
	RefreshStepTimeout  time.Duration
	HeaderCacheTTL      time.Duration

	RealtimeTables []string

	ExportDir    string
	ExportBucket string
	S3Region     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
}

// LoadDefaults populates c with development defaults (local backend stack).
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:54321"
	c.AnonKey = ""
	c.DatabasePath = "health.db"
	c.OnlineCheckInterval = 30 * time.Second
	c.AuthGracePeriod = 400 * time.Millisecond
	c.FastSessionTimeout = 400 * time.Millisecond
	c.UserIDTimeout = 2 * time.Second
	c.BootWatchdogTimeout = 15 * time.Second
	c.RefreshStepTimeout = 8 * time.Second
	c.HeaderCacheTTL = 5 * time.Minute
	c.RealtimeTables = []string{"health_events", "appointments"}
	c.ExportDir = "exports"
	c.ExportBucket = ""
	c.S3Region = "eu-central-1"
	c.S3Endpoint = ""
	c.S3AccessKey = ""
	c.S3SecretKey = ""
}

// LoadConfig applies defaults, then the optional JSON file, then flags.
// Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
