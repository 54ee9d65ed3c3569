// Package config loads menuboard settings from an optional YAML file overlaid
// by MENUBOARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MENUBOARD_"

type Config struct {
	Port       string `yaml:"port"`
	DBPath     string `yaml:"db_path"`
	AppBaseURL string `yaml:"app_base_url"`

	Log    LogConfig    `yaml:"log"`
	Keys   KeysConfig   `yaml:"keys"`
	Push   PushConfig   `yaml:"push"`
	Email  EmailConfig  `yaml:"email"`
	Backup BackupConfig `yaml:"backup"`
	Device DeviceConfig `yaml:"device"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KeysConfig holds the API keys accepted by the server.
type KeysConfig struct {
	Anon    string `yaml:"anon"`
	Service string `yaml:"service"`
}

type PushConfig struct {
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
	Subscriber      string        `yaml:"subscriber"`
	TTL             time.Duration `yaml:"ttl"`
	AdminUserIDs    []string      `yaml:"admin_user_ids"`
	DispatchRate    int           `yaml:"dispatch_rate"`
}

// Enabled reports whether a VAPID key pair is configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
	AdminAddress  string `yaml:"admin_address"`
}

type BackupConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// DeviceConfig is used by the device-side commands.
type DeviceConfig struct {
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	CacheDir string `yaml:"cache_dir"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "menuboard.db",
		Log:    LogConfig{Level: "info", Format: "text"},
		Push: PushConfig{
			Subscriber:   "noreply@menuboard.app",
			TTL:          24 * time.Hour,
			DispatchRate: 120,
		},
		Email:  EmailConfig{From: "noreply@menuboard.app"},
		Device: DeviceConfig{APIURL: "http://localhost:8080", CacheDir: ".menuboard"},
	}
}

// Load reads the YAML file at path, if path is not empty, then applies
// environment overrides from getenv. A nil getenv uses os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"PORT":              &c.Port,
		"DB_PATH":           &c.DBPath,
		"APP_BASE_URL":      &c.AppBaseURL,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FORMAT":        &c.Log.Format,
		"ANON_KEY":          &c.Keys.Anon,
		"SERVICE_KEY":       &c.Keys.Service,
		"VAPID_PUBLIC_KEY":  &c.Push.VAPIDPublicKey,
		"VAPID_PRIVATE_KEY": &c.Push.VAPIDPrivateKey,
		"VAPID_SUBSCRIBER":  &c.Push.Subscriber,
		"POSTMARK_TOKEN":    &c.Email.PostmarkToken,
		"EMAIL_FROM":        &c.Email.From,
		"ADMIN_EMAIL":       &c.Email.AdminAddress,
		"S3_ENDPOINT":       &c.Backup.Endpoint,
		"S3_BUCKET":         &c.Backup.Bucket,
		"S3_REGION":         &c.Backup.Region,
		"S3_ACCESS_KEY":     &c.Backup.AccessKey,
		"S3_SECRET_KEY":     &c.Backup.SecretKey,
		"S3_PREFIX":         &c.Backup.Prefix,
		"API_URL":           &c.Device.APIURL,
		"API_KEY":           &c.Device.APIKey,
		"CACHE_DIR":         &c.Device.CacheDir,
	}
	for name, dst := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvPrefix + "PUSH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPUSH_TTL: %w", EnvPrefix, err)
		}
		c.Push.TTL = d
	}
	if v := getenv(EnvPrefix + "DISPATCH_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sDISPATCH_RATE: %w", EnvPrefix, err)
		}
		c.Push.DispatchRate = n
	}
	if v := getenv(EnvPrefix + "ADMIN_USER_IDS"); v != "" {
		c.Push.AdminUserIDs = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Push.AdminUserIDs = append(c.Push.AdminUserIDs, id)
			}
		}
	}
	return nil
}

// Validate checks the settings the server needs to start.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.Keys.Anon == "" || c.Keys.Service == "" {
		errs = append(errs, errors.New("keys.anon and keys.service are required"))
	}
	if c.Keys.Anon != "" && c.Keys.Anon == c.Keys.Service {
		errs = append(errs, errors.New("keys.anon and keys.service must differ"))
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("push.vapid_public_key and push.vapid_private_key must be set together"))
	}
	if c.Push.TTL < 0 {
		errs = append(errs, errors.New("push.ttl must not be negative"))
	}
	if c.Push.DispatchRate < 0 {
		errs = append(errs, errors.New("push.dispatch_rate must not be negative"))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
