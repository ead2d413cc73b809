package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"alertflow/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultListen           = ":8080"
	defaultHealthPath       = "/healthz"
	defaultReadyPath        = "/readyz"
	defaultBasePath         = "/api/v1"
	defaultMaxBodyBytes     = 1 << 20
	defaultThrottleSec      = 60
	defaultEscalationSec    = 300
	defaultTTLMillis        = 3_600_000
	defaultLowScore         = 40.0
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultPersistentBucket = "alerts"
	defaultRealtimeSubject  = "alertflow.alerts"
	defaultIngestSubject    = "alertflow.ingest"
	defaultIngestQueue      = "alertflow-workers"
	defaultIngestWorkers    = 1
	defaultSinkTimeoutSec   = 10
	defaultVoiceScript      = "[{{ .Level }}] {{ .Component }}: {{ .Title }}. {{ .Message }}"

	// ServiceModeSingle keeps in-process channels only, without NATS transports.
	ServiceModeSingle = "single"
	// ServiceModeNATS enables NATS-backed persistent/realtime channels and ingest.
	ServiceModeNATS = "nats"
)

// Config holds service runtime settings.
// Params: TOML sections from one config file.
// Returns: validated runtime configuration.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Log      LogConfig      `toml:"log"`
	Engine   EngineConfig   `toml:"engine"`
	API      APIConfig      `toml:"api"`
	Ingest   IngestConfig   `toml:"ingest"`
	Channels ChannelsConfig `toml:"channels"`
}

// ServiceConfig contains process-level settings.
// Params: service name and runtime mode.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name string `toml:"name"`
	Mode string `toml:"mode"`
}

// LogConfig defines enabled log sinks.
// Params: console and file sink settings.
// Returns: logging runtime options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig configures one log sink.
// Params: enable flag, minimum level, output format, and file path.
// Returns: sink behavior for logger construction.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// EngineConfig contains lifecycle engine timing policy.
// Params: throttle window, escalation delay, default TTL, and score threshold.
// Returns: engine behavior knobs with reference defaults.
type EngineConfig struct {
	ThrottleWindowSec  int     `toml:"throttle_window_sec"`
	EscalationDelaySec int     `toml:"escalation_delay_sec"`
	DefaultTTLMillis   int64   `toml:"default_ttl_ms"`
	LowScoreThreshold  float64 `toml:"low_score_threshold"`
}

// APIConfig configures the HTTP lifecycle API.
// Params: enable flag, listen address, endpoint paths, and body cap.
// Returns: HTTP API behavior.
type APIConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	BasePath     string `toml:"base_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// IngestConfig defines inbound producer interfaces beyond the HTTP API.
// Params: embedded NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	NATS NATSIngestConfig `toml:"nats"`
}

// NATSIngestConfig configures queue-group alert-input subscription.
// Params: connection URL list, subject, queue group, and worker count.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled bool     `toml:"enabled"`
	URL     []string `toml:"url"`
	Subject string   `toml:"subject"`
	Queue   string   `toml:"queue"`
	Workers int      `toml:"workers"`
}

// ChannelsConfig defines all distribution channel sinks.
// Params: one section per channel, each independently togglable.
// Returns: channel construction options.
type ChannelsConfig struct {
	Persistent PersistentChannelConfig `toml:"persistent"`
	Realtime   RealtimeChannelConfig   `toml:"realtime"`
	Voice      VoiceChannelConfig      `toml:"voice"`
	Webhook    WebhookChannelConfig    `toml:"webhook"`
	Telegram   TelegramChannelConfig   `toml:"telegram"`
}

// PersistentChannelConfig configures the JetStream KV mirror sink.
// Params: URL list, bucket name, and create permission.
// Returns: persistent channel options.
type PersistentChannelConfig struct {
	Enabled           bool     `toml:"enabled"`
	URL               []string `toml:"url"`
	Bucket            string   `toml:"bucket"`
	AllowCreateBucket bool     `toml:"allow_create_bucket"`
}

// RealtimeChannelConfig configures the NATS broadcast sink.
// Params: URL list and publish subject.
// Returns: realtime channel options.
type RealtimeChannelConfig struct {
	Enabled bool     `toml:"enabled"`
	URL     []string `toml:"url"`
	Subject string   `toml:"subject"`
}

// VoiceChannelConfig configures the voice/push notification sink.
// Params: endpoint URL, timeout, auth token, and script template body.
// Returns: voice channel options.
type VoiceChannelConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	TimeoutSec     int    `toml:"timeout_sec"`
	Token          string `toml:"token"`
	ScriptTemplate string `toml:"script_template"`
}

// WebhookChannelConfig configures the generic webhook sink.
// Params: endpoint URL, method, timeout, bearer credential, and extra headers.
// Returns: webhook channel options.
type WebhookChannelConfig struct {
	Enabled     bool              `toml:"enabled"`
	URL         string            `toml:"url"`
	Method      string            `toml:"method"`
	TimeoutSec  int               `toml:"timeout_sec"`
	BearerToken string            `toml:"bearer_token"`
	Headers     map[string]string `toml:"headers"`
}

// TelegramChannelConfig configures the optional telegram sink.
// Params: bot token, chat id, and API base URL.
// Returns: telegram channel options.
type TelegramChannelConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
}

// Load reads, defaults, and validates one TOML config file.
// Params: config file path.
// Returns: runtime config snapshot or load/validation error.
func Load(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns defaulted single-mode configuration.
// Params: none.
// Returns: config snapshot usable without a file.
func Default() Config {
	cfg := ApplyDefaults(Config{})
	cfg.Log.Console.Enabled = true
	return cfg
}

// ApplyDefaults fills zero-valued fields with reference defaults.
// Params: decoded config snapshot.
// Returns: config with all defaults applied.
func ApplyDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "alertflow"
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)

	cfg.Log.Console = applySinkDefaults(cfg.Log.Console)
	cfg.Log.File = applySinkDefaults(cfg.Log.File)

	if cfg.Engine.ThrottleWindowSec <= 0 {
		cfg.Engine.ThrottleWindowSec = defaultThrottleSec
	}
	if cfg.Engine.EscalationDelaySec <= 0 {
		cfg.Engine.EscalationDelaySec = defaultEscalationSec
	}
	if cfg.Engine.DefaultTTLMillis <= 0 {
		cfg.Engine.DefaultTTLMillis = defaultTTLMillis
	}
	if cfg.Engine.LowScoreThreshold <= 0 {
		cfg.Engine.LowScoreThreshold = defaultLowScore
	}

	if strings.TrimSpace(cfg.API.Listen) == "" {
		cfg.API.Listen = defaultListen
	}
	if strings.TrimSpace(cfg.API.HealthPath) == "" {
		cfg.API.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.API.ReadyPath) == "" {
		cfg.API.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.API.BasePath) == "" {
		cfg.API.BasePath = defaultBasePath
	}
	cfg.API.BasePath = strings.TrimSuffix(cfg.API.BasePath, "/")
	if cfg.API.MaxBodyBytes <= 0 {
		cfg.API.MaxBodyBytes = defaultMaxBodyBytes
	}

	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Subject) == "" {
		cfg.Ingest.NATS.Subject = defaultIngestSubject
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Queue) == "" {
		cfg.Ingest.NATS.Queue = defaultIngestQueue
	}
	if cfg.Ingest.NATS.Workers <= 0 {
		cfg.Ingest.NATS.Workers = defaultIngestWorkers
	}

	if len(cfg.Channels.Persistent.URL) == 0 {
		cfg.Channels.Persistent.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Channels.Persistent.Bucket) == "" {
		cfg.Channels.Persistent.Bucket = defaultPersistentBucket
	}
	if len(cfg.Channels.Realtime.URL) == 0 {
		cfg.Channels.Realtime.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Channels.Realtime.Subject) == "" {
		cfg.Channels.Realtime.Subject = defaultRealtimeSubject
	}
	if cfg.Channels.Voice.TimeoutSec <= 0 {
		cfg.Channels.Voice.TimeoutSec = defaultSinkTimeoutSec
	}
	if strings.TrimSpace(cfg.Channels.Voice.ScriptTemplate) == "" {
		cfg.Channels.Voice.ScriptTemplate = defaultVoiceScript
	}
	if strings.TrimSpace(cfg.Channels.Webhook.Method) == "" {
		cfg.Channels.Webhook.Method = "POST"
	}
	if cfg.Channels.Webhook.TimeoutSec <= 0 {
		cfg.Channels.Webhook.TimeoutSec = defaultSinkTimeoutSec
	}
	return cfg
}

// applySinkDefaults fills one log sink with default level/format.
// Params: decoded sink section.
// Returns: sink with defaults applied.
func applySinkDefaults(sink LogSinkConfig) LogSinkConfig {
	if strings.TrimSpace(sink.Level) == "" {
		sink.Level = "info"
	}
	if strings.TrimSpace(sink.Format) == "" {
		sink.Format = "line"
	}
	return sink
}

// NormalizeServiceMode maps raw mode value onto supported mode constants.
// Params: raw mode string.
// Returns: "single" or "nats"; empty input defaults to single.
func NormalizeServiceMode(raw string) string {
	mode := strings.ToLower(strings.TrimSpace(raw))
	if mode == "" {
		return ServiceModeSingle
	}
	return mode
}

// Validate checks config invariants after defaults.
// Params: defaulted config snapshot.
// Returns: first validation error.
func Validate(cfg Config) error {
	switch cfg.Service.Mode {
	case ServiceModeSingle, ServiceModeNATS:
	default:
		return fmt.Errorf("service.mode %q is not supported", cfg.Service.Mode)
	}

	if err := validateSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	if cfg.Channels.Voice.Enabled && strings.TrimSpace(cfg.Channels.Voice.URL) == "" {
		return errors.New("channels.voice.url is required when voice channel is enabled")
	}
	if cfg.Channels.Voice.Enabled {
		if _, err := templatefmt.ParseScriptTemplate("channels.voice.script_template", cfg.Channels.Voice.ScriptTemplate); err != nil {
			return fmt.Errorf("channels.voice.script_template is invalid: %w", err)
		}
	}
	if cfg.Channels.Webhook.Enabled && strings.TrimSpace(cfg.Channels.Webhook.URL) == "" {
		return errors.New("channels.webhook.url is required when webhook channel is enabled")
	}
	if cfg.Channels.Telegram.Enabled {
		if strings.TrimSpace(cfg.Channels.Telegram.BotToken) == "" {
			return errors.New("channels.telegram.bot_token is required when telegram channel is enabled")
		}
		if strings.TrimSpace(cfg.Channels.Telegram.ChatID) == "" {
			return errors.New("channels.telegram.chat_id is required when telegram channel is enabled")
		}
	}

	if cfg.Service.Mode == ServiceModeSingle {
		if cfg.Channels.Persistent.Enabled || cfg.Channels.Realtime.Enabled || cfg.Ingest.NATS.Enabled {
			return errors.New("nats-backed channels require service.mode = \"nats\"")
		}
	}
	return nil
}

// validateSink checks one log sink section.
// Params: section label, sink settings, and file-path requirement flag.
// Returns: validation error.
func validateSink(label string, sink LogSinkConfig, needsPath bool) error {
	if !sink.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level %q is not supported", label, sink.Level)
	}
	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format %q is not supported", label, sink.Format)
	}
	if needsPath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", label)
	}
	return nil
}
