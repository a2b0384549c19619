package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/flagx"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Pointer and zero
// values mean "not set"; only present keys override the current Config.
type JsonConfig struct {
	BackendURL   string `json:"backend_url"`
	AnonKey      string `json:"anon_key"`
	DatabasePath string `json:"database_path"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	AuthGracePeriod     *timex.Duration `json:"auth_grace_period"`
	FastSessionTimeout  *timex.Duration `json:"fast_session_timeout"`
	UserIDTimeout       *timex.Duration `json:"user_id_timeout"`
	BootWatchdogTimeout *timex.Duration `json:"boot_watchdog_timeout"`
	RefreshStepTimeout  *timex.Duration `json:"refresh_step_timeout"`
	HeaderCacheTTL      *timex.Duration `json:"header_cache_ttl"`

	RealtimeTables []string `json:"realtime_tables"`

	ExportDir    string `json:"export_dir"`
	ExportBucket string `json:"export_bucket"`
	S3Region     string `json:"s3_region"`
	S3Endpoint   string `json:"s3_endpoint"`
	S3AccessKey  string `json:"s3_access_key"`
	S3SecretKey  string `json:"s3_secret_key"`
}

// parseJson overlays cfg with the file named by -c / -config in args.
// It panics on read or decode errors; a broken config file is fatal.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.BackendURL, jc.BackendURL)
	setString(&cfg.AnonKey, jc.AnonKey)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.ExportDir, jc.ExportDir)
	setString(&cfg.ExportBucket, jc.ExportBucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)

	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.AuthGracePeriod, jc.AuthGracePeriod)
	setDuration(&cfg.FastSessionTimeout, jc.FastSessionTimeout)
	setDuration(&cfg.UserIDTimeout, jc.UserIDTimeout)
	setDuration(&cfg.BootWatchdogTimeout, jc.BootWatchdogTimeout)
	setDuration(&cfg.RefreshStepTimeout, jc.RefreshStepTimeout)
	setDuration(&cfg.HeaderCacheTTL, jc.HeaderCacheTTL)

	if jc.RealtimeTables != nil {
		cfg.RealtimeTables = append([]string(nil), jc.RealtimeTables...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
