package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"mediationd/internal/common/fsutil"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// LogFile enables a rotating log file in addition to stderr.
	LogFile       string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogMaxSizeMB  int    `json:"log_max_size_mb" yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups" yaml:"log_max_backups" toml:"log_max_backups"`
	LogMaxAgeDays int    `json:"log_max_age_days" yaml:"log_max_age_days" toml:"log_max_age_days"`

	RequestTTLSeconds    int      `json:"request_ttl_seconds" yaml:"request_ttl_seconds" toml:"request_ttl_seconds"`
	SweepIntervalSeconds int      `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds" toml:"sweep_interval_seconds"`
	MaxBodyBytes         int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins          []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	MoPub  NetworkConfig `json:"mopub" yaml:"mopub" toml:"mopub"`
	Vungle NetworkConfig `json:"vungle" yaml:"vungle" toml:"vungle"`
}

// NetworkConfig configures one mediated network.
type NetworkConfig struct {
	Disabled bool   `json:"disabled" yaml:"disabled" toml:"disabled"`
	AppID    string `json:"app_id" yaml:"app_id" toml:"app_id"`
	// EagerInit initializes the SDK at startup with EagerAdUnit.
	EagerInit      bool   `json:"eager_init" yaml:"eager_init" toml:"eager_init"`
	EagerAdUnit    string `json:"eager_ad_unit" yaml:"eager_ad_unit" toml:"eager_ad_unit"`
	ConsentStatus  string `json:"consent_status" yaml:"consent_status" toml:"consent_status"`
	ConsentVersion string `json:"consent_version" yaml:"consent_version" toml:"consent_version"`
	// SettingsFile holds SDK settings; changes re-initialize a running SDK.
	SettingsFile string    `json:"settings_file" yaml:"settings_file" toml:"settings_file"`
	Sim          SimConfig `json:"sim" yaml:"sim" toml:"sim"`
}

// SimConfig drives the simulated SDK behind a network.
type SimConfig struct {
	InitDelayMs  int     `json:"init_delay_ms" yaml:"init_delay_ms" toml:"init_delay_ms"`
	InitError    string  `json:"init_error" yaml:"init_error" toml:"init_error"`
	LoadDelayMs  int     `json:"load_delay_ms" yaml:"load_delay_ms" toml:"load_delay_ms"`
	FillRate     float64 `json:"fill_rate" yaml:"fill_rate" toml:"fill_rate"`
	NoFill       bool    `json:"no_fill" yaml:"no_fill" toml:"no_fill"`
	ShowDelayMs  int     `json:"show_delay_ms" yaml:"show_delay_ms" toml:"show_delay_ms"`
	Click        bool    `json:"click" yaml:"click" toml:"click"`
	RewardType   string  `json:"reward_type" yaml:"reward_type" toml:"reward_type"`
	RewardAmount int     `json:"reward_amount" yaml:"reward_amount" toml:"reward_amount"`
}

// Defaults.
const (
	DefaultAddr          = ":8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
	DefaultRequestTTL    = 600
	DefaultSweepInterval = 30
	DefaultMaxBodyBytes  = 1 << 20
	DefaultRewardType    = "coins"
	DefaultRewardAmount  = 1
)

// WithDefaults returns a copy of c with every unspecified field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.LogMaxBackups <= 0 {
		c.LogMaxBackups = DefaultLogMaxBackups
	}
	if c.LogMaxAgeDays <= 0 {
		c.LogMaxAgeDays = DefaultLogMaxAgeDays
	}
	if c.RequestTTLSeconds <= 0 {
		c.RequestTTLSeconds = DefaultRequestTTL
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = DefaultSweepInterval
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.MoPub.Sim = c.MoPub.Sim.withDefaults()
	c.Vungle.Sim = c.Vungle.Sim.withDefaults()
	return c
}

func (s SimConfig) withDefaults() SimConfig {
	if s.RewardType == "" {
		s.RewardType = DefaultRewardType
	}
	if s.RewardAmount <= 0 {
		s.RewardAmount = DefaultRewardAmount
	}
	return s
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
// File paths inside the config are resolved relative to the config file.
func Load(path string) (Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.LogFile, &cfg.MoPub.SettingsFile, &cfg.Vungle.SettingsFile} {
		resolved, err := fsutil.ResolvePath(dir, *p)
		if err != nil {
			return Config{}, err
		}
		*p = resolved
	}
	return cfg, nil
}

// LoadSettings reads a flat key/value SDK settings file. Non-string values
// are formatted with %v.
func LoadSettings(path string) (map[string]string, error) {
	raw := map[string]any{}
	if err := decodeFile(path, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out, nil
}

func decodeFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, v)
	case ".json":
		err = json.Unmarshal(b, v)
	case ".toml":
		err = toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
