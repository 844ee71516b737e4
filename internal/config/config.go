// Package config loads chorely settings from an optional TOML file and
// CHORELY_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

const envPrefix = "CHORELY_"

type Config struct {
	Port     string `toml:"port"`
	DBPath   string `toml:"db_path"`
	Timezone string `toml:"timezone"`

	Log      LogConfig      `toml:"log"`
	Generate GenerateConfig `toml:"generate"`
	Notify   NotifyConfig   `toml:"notifications"`
	Push     PushConfig     `toml:"push"`
	Backup   BackupConfig   `toml:"backup"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type GenerateConfig struct {
	Cron        string `toml:"cron"`
	CatchUpDays int    `toml:"catch_up_days"`
}

// NotifyConfig durations use time.ParseDuration syntax ("1m", "15m").
type NotifyConfig struct {
	Enabled    bool   `toml:"enabled"`
	Interval   string `toml:"interval"`
	LeadTime   string `toml:"lead_time"`
	DigestHour int    `toml:"digest_hour"`
}

type PushConfig struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
}

// BackupConfig controls local database snapshots. An empty passphrase
// writes unencrypted copies. Keep 0 disables pruning.
type BackupConfig struct {
	Dir        string `toml:"dir"`
	Keep       int    `toml:"keep"`
	Passphrase string `toml:"passphrase"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:     "8080",
		DBPath:   "chorely.db",
		Timezone: "Local",
		Log:      LogConfig{Level: "info", Format: "text"},
		Generate: GenerateConfig{Cron: "5 0 * * *", CatchUpDays: 1},
		Notify: NotifyConfig{
			Enabled:    true,
			Interval:   "1m",
			LeadTime:   "15m",
			DigestHour: 7,
		},
		Backup: BackupConfig{Dir: "backups", Keep: 7},
	}
}

// Load reads path (skipped when empty or missing), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			dec := toml.NewDecoder(bytes.NewReader(data))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":              &cfg.Port,
		"DB_PATH":           &cfg.DBPath,
		"TIMEZONE":          &cfg.Timezone,
		"LOG_LEVEL":         &cfg.Log.Level,
		"LOG_FORMAT":        &cfg.Log.Format,
		"GENERATE_CRON":     &cfg.Generate.Cron,
		"NOTIFY_INTERVAL":   &cfg.Notify.Interval,
		"NOTIFY_LEAD_TIME":  &cfg.Notify.LeadTime,
		"VAPID_PUBLIC_KEY":  &cfg.Push.VAPIDPublicKey,
		"VAPID_PRIVATE_KEY": &cfg.Push.VAPIDPrivateKey,
		"VAPID_SUBSCRIBER":  &cfg.Push.Subscriber,
		"BACKUP_DIR":        &cfg.Backup.Dir,
		"BACKUP_PASSPHRASE": &cfg.Backup.Passphrase,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GENERATE_CATCH_UP_DAYS": &cfg.Generate.CatchUpDays,
		"NOTIFY_DIGEST_HOUR":     &cfg.Notify.DigestHour,
		"BACKUP_KEEP":            &cfg.Backup.Keep,
	}
	for key, dst := range ints {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup(envPrefix + "NOTIFY_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sNOTIFY_ENABLED: %w", envPrefix, err)
		}
		cfg.Notify.Enabled = b
	}
	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Generate.Cron); err != nil {
		return fmt.Errorf("generate.cron %q: %w", c.Generate.Cron, err)
	}
	if c.Generate.CatchUpDays < 0 {
		return errors.New("generate.catch_up_days must not be negative")
	}
	if _, err := c.Notify.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.Notify.LeadTimeDuration(); err != nil {
		return err
	}
	if c.Notify.DigestHour < 0 || c.Notify.DigestHour > 23 {
		return fmt.Errorf("notifications.digest_hour %d out of range", c.Notify.DigestHour)
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("push: both VAPID keys must be set together")
	}
	if c.Backup.Keep < 0 {
		return errors.New("backup.keep must not be negative")
	}
	return nil
}

// Location resolves the household timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (n NotifyConfig) IntervalDuration() (time.Duration, error) {
	return parsePositive("notifications.interval", n.Interval)
}

func (n NotifyConfig) LeadTimeDuration() (time.Duration, error) {
	return parsePositive("notifications.lead_time", n.LeadTime)
}

func parsePositive(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
