package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration shared by the supervisor, the
// workers it launches and the CLI.
type Config struct {
	Store      StoreConfig      `json:"store" yaml:"store"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
	Oracle     OracleConfig     `json:"oracle" yaml:"oracle"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Trace      TraceConfig      `json:"trace" yaml:"trace"`
}

// StoreConfig selects the persistence backend. For sqlite DSN is a file path.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // "json" or "console"
}

type SupervisorConfig struct {
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent"`
	StopTimeout   string `json:"stop_timeout" yaml:"stop_timeout"`     // e.g. "10s"
	WatchInterval string `json:"watch_interval" yaml:"watch_interval"` // e.g. "2s"
	InProcess     bool   `json:"in_process" yaml:"in_process"`
}

type OracleConfig struct {
	Source  string `json:"source" yaml:"source"` // auto, coinbase, binance, coingecko
	Timeout string `json:"timeout" yaml:"timeout"`
	Retries int    `json:"retries" yaml:"retries"`
}

// NotifyConfig switches chat channels on for the whole process; each
// simulation still opts in. Tokens and webhooks come from the environment.
type NotifyConfig struct {
	Telegram bool   `json:"telegram" yaml:"telegram"`
	Discord  bool   `json:"discord" yaml:"discord"`
	Timeout  string `json:"timeout" yaml:"timeout"`
}

// JournalConfig controls the per-simulation CSV copy of the journal. The
// store always holds the authoritative rows.
type JournalConfig struct {
	CSVDir string `json:"csv_dir" yaml:"csv_dir"` // empty disables the copy
}

type TraceConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Service string `json:"service" yaml:"service"`
}

// MaxConcurrentLimit is the hard ceiling on active simulations.
const MaxConcurrentLimit = 5

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be 'sqlite' or 'postgres'")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console'")
	}
	if c.Supervisor.MaxConcurrent < 1 || c.Supervisor.MaxConcurrent > MaxConcurrentLimit {
		return fmt.Errorf("supervisor.max_concurrent must be between 1 and %d", MaxConcurrentLimit)
	}
	for name, v := range map[string]string{
		"supervisor.stop_timeout":   c.Supervisor.StopTimeout,
		"supervisor.watch_interval": c.Supervisor.WatchInterval,
		"oracle.timeout":            c.Oracle.Timeout,
		"notify.timeout":            c.Notify.Timeout,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Oracle.Source {
	case "auto", "coinbase", "binance", "coingecko":
	default:
		return fmt.Errorf("oracle.source must be one of auto, coinbase, binance, coingecko")
	}
	if c.Oracle.Retries < 0 {
		return fmt.Errorf("oracle.retries must not be negative")
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return d, nil
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := parseDuration(s)
	if err != nil || d == 0 {
		return def
	}
	return d
}

func (s SupervisorConfig) StopTimeoutDuration() time.Duration {
	return durationOr(s.StopTimeout, 10*time.Second)
}

func (s SupervisorConfig) WatchIntervalDuration() time.Duration {
	return durationOr(s.WatchInterval, 2*time.Second)
}

func (o OracleConfig) TimeoutDuration() time.Duration {
	return durationOr(o.Timeout, 10*time.Second)
}

func (n NotifyConfig) TimeoutDuration() time.Duration {
	return durationOr(n.Timeout, 10*time.Second)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "./simtrader.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Supervisor: SupervisorConfig{
			MaxConcurrent: MaxConcurrentLimit,
			StopTimeout:   "10s",
			WatchInterval: "2s",
		},
		Oracle: OracleConfig{
			Source:  "auto",
			Timeout: "10s",
			Retries: 2,
		},
		Notify: NotifyConfig{
			Telegram: true,
			Discord:  true,
			Timeout:  "10s",
		},
		Trace: TraceConfig{
			Service: "simtrader",
		},
	}
}
