// Package config provides configuration loading for basewatch.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full basewatch configuration.
type Config struct {
	Watch         WatchConfig        `yaml:"watch"`
	Thresholds    ThresholdConfig    `yaml:"thresholds"`
	Escalation    EscalationConfig   `yaml:"escalation"`
	History       HistoryConfig      `yaml:"history"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
	MCP           MCPConfig          `yaml:"mcp"`
	Baseline      BaselineConfig     `yaml:"baseline"`
	Store         StoreConfig        `yaml:"store"`
	Rescan        RescanConfig       `yaml:"rescan"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`

	// Log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Paths are the roots to monitor.
	Paths []string `yaml:"paths"`
	// PollInterval is the fallback poller cadence (Go duration string).
	PollInterval string `yaml:"poll_interval"`
	// Debounce is the per-file quiet period before analysis (Go duration string).
	Debounce string `yaml:"debounce"`
	// Extensions overrides the built-in relevant-extension list.
	Extensions []string `yaml:"extensions,omitempty"`
	// IgnoreDirs overrides the built-in ignored directory names.
	IgnoreDirs []string `yaml:"ignore_dirs,omitempty"`
	// ForcePoll disables native watching and uses the poller everywhere.
	ForcePoll bool `yaml:"force_poll,omitempty"`
}

// ThresholdConfig sets the alert evaluation thresholds.
type ThresholdConfig struct {
	// Risk alerts fire when a file's risk score exceeds this (0-100).
	Risk int `yaml:"risk"`
	// Compatibility alerts fire when the compat score drops below this (0-100).
	Compatibility int `yaml:"compatibility"`
}

// EscalationWindow is one per-severity escalation rule.
type EscalationWindow struct {
	// MaxCount is the occurrence count that triggers escalation.
	MaxCount int `yaml:"max_count"`
	// Window is the period the occurrences must fall within (Go duration string).
	Window string `yaml:"window"`
}

// EscalationConfig holds the per-severity escalation rules.
type EscalationConfig struct {
	Low      EscalationWindow `yaml:"low"`
	Medium   EscalationWindow `yaml:"medium"`
	High     EscalationWindow `yaml:"high"`
	Critical EscalationWindow `yaml:"critical"`
}

// HistoryConfig configures alert history persistence.
type HistoryConfig struct {
	Path    string `yaml:"path"`
	MaxSize int    `yaml:"max_size"`
}

// NotificationConfig selects and configures notification channels.
type NotificationConfig struct {
	// Channels to enable: console, file, webhook, email, chat, nats.
	Channels []string `yaml:"channels"`
	// DryRun formats and logs outbound payloads instead of sending them.
	DryRun bool `yaml:"dry_run"`
	// FileDir is where the file channel writes its alert logs.
	FileDir string `yaml:"file_dir"`
	// FileMaxSize rotates the alert log when it exceeds this many bytes.
	FileMaxSize int64 `yaml:"file_max_size"`
	// RateLimitPerHour caps notifications per file per hour (0 disables).
	RateLimitPerHour int `yaml:"rate_limit_per_hour"`

	Webhook WebhookConfig `yaml:"webhook,omitempty"`
	Email   EmailConfig   `yaml:"email,omitempty"`
	Chat    ChatConfig    `yaml:"chat,omitempty"`
	NATS    NATSConfig    `yaml:"nats,omitempty"`
}

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	URL    string `yaml:"url,omitempty"`
	Secret string `yaml:"secret,omitempty"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string   `yaml:"host,omitempty"`
	Port     int      `yaml:"port,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       []string `yaml:"to,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// ChatConfig configures the chat (incoming webhook) channel.
type ChatConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// NATSConfig configures the NATS channel.
type NATSConfig struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// MCPConfig configures the MCP tool surface (mounted on the API server).
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BaselineConfig selects the baseline feature table.
type BaselineConfig struct {
	// TablePath loads a YAML table merged over the built-in one.
	TablePath string `yaml:"table_path,omitempty"`
	// PackRef pulls a baseline pack from an OCI registry at startup.
	PackRef  string         `yaml:"pack_ref,omitempty"`
	Registry RegistryConfig `yaml:"registry,omitempty"`
}

// RegistryConfig holds OCI registry credentials for baseline packs.
type RegistryConfig struct {
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	PlainHTTP bool   `yaml:"plain_http,omitempty"`
}

// StoreConfig configures the analysis record store.
type StoreConfig struct {
	// Path to the SQLite database. Empty keeps records in memory only.
	Path string `yaml:"path"`
}

// RescanConfig schedules periodic full rescans.
type RescanConfig struct {
	// Schedule is a Go duration ("30m") or a cron expression ("0 3 * * *").
	// Empty disables scheduled rescans.
	Schedule string `yaml:"schedule,omitempty"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	// OTLPEndpoint enables tracing when set (host:port of an OTLP gRPC collector).
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		Watch: WatchConfig{
			Paths:        []string{"."},
			PollInterval: "1s",
			Debounce:     "500ms",
		},
		Thresholds: ThresholdConfig{
			Risk:          70,
			Compatibility: 60,
		},
		Escalation: EscalationConfig{
			Low:      EscalationWindow{MaxCount: 5, Window: "10m"},
			Medium:   EscalationWindow{MaxCount: 4, Window: "5m"},
			High:     EscalationWindow{MaxCount: 3, Window: "2m"},
			Critical: EscalationWindow{MaxCount: 2, Window: "1m"},
		},
		History: HistoryConfig{
			Path:    "alert-history.json",
			MaxSize: 1000,
		},
		Notifications: NotificationConfig{
			Channels:         []string{"console"},
			DryRun:           true,
			FileDir:          "alert-logs",
			FileMaxSize:      10 << 20,
			RateLimitPerHour: 60,
		},
		Server: ServerConfig{
			ListenAddr: ":8970",
		},
		Store: StoreConfig{
			Path: "basewatch.db",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BASEWATCH_WATCH_PATHS"); v != "" {
		cfg.Watch.Paths = splitList(v)
	}
	if v := os.Getenv("BASEWATCH_POLL_INTERVAL"); v != "" {
		cfg.Watch.PollInterval = v
	}
	if v := os.Getenv("BASEWATCH_DEBOUNCE"); v != "" {
		cfg.Watch.Debounce = v
	}
	if v := os.Getenv("BASEWATCH_RISK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Thresholds.Risk = n
		}
	}
	if v := os.Getenv("BASEWATCH_COMPAT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Thresholds.Compatibility = n
		}
	}
	if v := os.Getenv("BASEWATCH_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("BASEWATCH_CHANNELS"); v != "" {
		cfg.Notifications.Channels = splitList(v)
	}
	if v := os.Getenv("BASEWATCH_DRY_RUN"); v != "" {
		cfg.Notifications.DryRun = v == "true" || v == "1"
	}
	if v := os.Getenv("BASEWATCH_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
	if v := os.Getenv("BASEWATCH_WEBHOOK_SECRET"); v != "" {
		cfg.Notifications.Webhook.Secret = v
	}
	if v := os.Getenv("BASEWATCH_NATS_URL"); v != "" {
		cfg.Notifications.NATS.URL = v
	}
	if v := os.Getenv("BASEWATCH_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
		cfg.Server.Enabled = true
	}
	if v := os.Getenv("BASEWATCH_BASELINE_REF"); v != "" {
		cfg.Baseline.PackRef = v
	}
	if v := os.Getenv("BASEWATCH_REGISTRY_USERNAME"); v != "" {
		cfg.Baseline.Registry.Username = v
	}
	if v := os.Getenv("BASEWATCH_REGISTRY_PASSWORD"); v != "" {
		cfg.Baseline.Registry.Password = v
	}
	if v := os.Getenv("BASEWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("BASEWATCH_RESCAN_SCHEDULE"); v != "" {
		cfg.Rescan.Schedule = v
	}
	if v := os.Getenv("BASEWATCH_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("BASEWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	if _, err := c.PollInterval(); err != nil {
		return fmt.Errorf("watch.poll_interval: %w", err)
	}
	if _, err := c.Debounce(); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	}
	if c.Thresholds.Risk < 0 || c.Thresholds.Risk > 100 {
		return fmt.Errorf("thresholds.risk %d out of range 0-100", c.Thresholds.Risk)
	}
	if c.Thresholds.Compatibility < 0 || c.Thresholds.Compatibility > 100 {
		return fmt.Errorf("thresholds.compatibility %d out of range 0-100", c.Thresholds.Compatibility)
	}
	if c.History.MaxSize <= 0 {
		return fmt.Errorf("history.max_size must be positive, got %d", c.History.MaxSize)
	}
	for name, w := range map[string]EscalationWindow{
		"low": c.Escalation.Low, "medium": c.Escalation.Medium,
		"high": c.Escalation.High, "critical": c.Escalation.Critical,
	} {
		if w.MaxCount <= 0 {
			return fmt.Errorf("escalation.%s.max_count must be positive", name)
		}
		if _, err := time.ParseDuration(w.Window); err != nil {
			return fmt.Errorf("escalation.%s.window: %w", name, err)
		}
	}

	// Extensions normalize to lowercase with a leading dot.
	for i, ext := range c.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Watch.Extensions[i] = ext
	}

	return nil
}

// PollInterval parses the poller cadence.
func (c *Config) PollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Watch.PollInterval)
}

// Debounce parses the per-file debounce period.
func (c *Config) Debounce() (time.Duration, error) {
	return time.ParseDuration(c.Watch.Debounce)
}

// Save writes configuration to a YAML file with restrictive permissions.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
