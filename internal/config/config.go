// Package config loads the dashboard configuration and keeps it current.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend transports.
const (
	TransportStreamable = "streamable"
	TransportSSE        = "sse"
	TransportWebSocket  = "websocket"
)

// GlobalStateDir returns the default state directory (~/.config/titandash).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "titandash")
}

// BackendConfig says how to reach the bot backend.
type BackendConfig struct {
	URL       string `yaml:"url"`       // MCP endpoint
	Transport string `yaml:"transport"` // streamable (default), sse or websocket
	// PushURL is the WebSocket endpoint push events arrive on when Transport
	// is websocket. Requests still go to URL.
	PushURL               string            `yaml:"push_url"`
	Headers               map[string]string `yaml:"headers"`
	ReconnectMinMs        int               `yaml:"reconnect_min_ms"`
	ReconnectMaxMs        int               `yaml:"reconnect_max_ms"`
	RequestTimeoutSeconds int               `yaml:"request_timeout_seconds"`
}

// AlertsConfig controls toasts and the alert history.
type AlertsConfig struct {
	RetentionMax   int `yaml:"retention_max"`
	RetentionDays  int `yaml:"retention_days"`
	ToastTimeoutMs int `yaml:"toast_timeout_ms"`
}

// TimersConfig controls countdown and stopwatch text.
type TimersConfig struct {
	DisablePadding bool `yaml:"disable_padding"`
}

// LogsConfig controls the logs panel.
type LogsConfig struct {
	MaxRecords     int  `yaml:"max_records"`
	Tail           bool `yaml:"tail"`             // follow local log files reported by the backend
	PollIntervalMs int  `yaml:"poll_interval_ms"` // tail fallback poll interval
}

// Config is the on-disk configuration.
type Config struct {
	Backend   *BackendConfig `yaml:"backend"`
	HTTPPort  int            `yaml:"http_port"`
	StateFile string         `yaml:"state_file"`
	LogFile   string         `yaml:"log_file"`
	Alerts    *AlertsConfig  `yaml:"alerts"`
	Timers    *TimersConfig  `yaml:"timers"`
	Logs      *LogsConfig    `yaml:"logs"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Backend: &BackendConfig{
			URL:                   "http://127.0.0.1:8000/mcp",
			Transport:             TransportStreamable,
			ReconnectMinMs:        500,
			ReconnectMaxMs:        30000,
			RequestTimeoutSeconds: 15,
		},
		HTTPPort: 8765,
		Alerts: &AlertsConfig{
			RetentionMax:   1000,
			RetentionDays:  30,
			ToastTimeoutMs: 5000,
		},
		Timers: &TimersConfig{},
		Logs: &LogsConfig{
			MaxRecords:     3000,
			PollIntervalMs: 2000,
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	def := DefaultConfig()
	if cfg.Backend == nil {
		cfg.Backend = def.Backend
	}
	if cfg.Alerts == nil {
		cfg.Alerts = def.Alerts
	}
	if cfg.Timers == nil {
		cfg.Timers = def.Timers
	}
	if cfg.Logs == nil {
		cfg.Logs = def.Logs
	}
	switch cfg.Backend.Transport {
	case "", TransportStreamable, TransportSSE, TransportWebSocket:
	default:
		return nil, fmt.Errorf("parse config: unknown backend transport %q", cfg.Backend.Transport)
	}
	return cfg, nil
}

// Settings is a goroutine-safe view of a Config that can be swapped on reload.
// Accessors apply defaults for zero values.
type Settings struct {
	mu     sync.RWMutex
	config *Config
}

// New wraps cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Settings {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Settings{config: cfg}
}

func (s *Settings) get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Replace swaps in a freshly loaded config.
func (s *Settings) Replace(cfg *Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

func (s *Settings) backend() BackendConfig {
	if b := s.get().Backend; b != nil {
		return *b
	}
	return *DefaultConfig().Backend
}

// BackendURL is the MCP endpoint of the backend.
func (s *Settings) BackendURL() string { return s.backend().URL }

// Transport returns the backend transport, streamable by default.
func (s *Settings) Transport() string {
	if t := s.backend().Transport; t != "" {
		return t
	}
	return TransportStreamable
}

// PushURL returns the WebSocket push endpoint.
func (s *Settings) PushURL() string { return s.backend().PushURL }

// Headers are sent with every backend request.
func (s *Settings) Headers() map[string]string { return s.backend().Headers }

// ReconnectDelays returns the first and the largest delay between reconnects.
func (s *Settings) ReconnectDelays() (min, max time.Duration) {
	b := s.backend()
	min, max = 500*time.Millisecond, 30*time.Second
	if b.ReconnectMinMs > 0 {
		min = time.Duration(b.ReconnectMinMs) * time.Millisecond
	}
	if b.ReconnectMaxMs > 0 {
		max = time.Duration(b.ReconnectMaxMs) * time.Millisecond
	}
	if max < min {
		max = min
	}
	return min, max
}

// RequestTimeout bounds a single backend call.
func (s *Settings) RequestTimeout() time.Duration {
	if n := s.backend().RequestTimeoutSeconds; n > 0 {
		return time.Duration(n) * time.Second
	}
	return 15 * time.Second
}

// HTTPPort is the port the dashboard is served on; 0 disables it.
func (s *Settings) HTTPPort() int { return s.get().HTTPPort }

// StateFile returns the SQLite file for alerts and selection.
// If unset, defaults to ~/.config/titandash/state.sqlite.
func (s *Settings) StateFile() string {
	if sf := s.get().StateFile; sf != "" {
		return sf
	}
	return filepath.Join(GlobalStateDir(), "state.sqlite")
}

// LogFile returns the log file path.
// If unset, defaults to ~/.config/titandash/titandash.log.
// Set to "none" or "off" to disable file logging entirely.
func (s *Settings) LogFile() string {
	if lf := s.get().LogFile; lf != "" {
		return lf
	}
	return filepath.Join(GlobalStateDir(), "titandash.log")
}

// FileLogging reports whether LogFile names a file.
func (s *Settings) FileLogging() bool {
	lower := strings.ToLower(s.LogFile())
	return lower != "none" && lower != "off"
}

// AlertRetention returns how many alerts to keep and for how many days.
func (s *Settings) AlertRetention() (max, days int) {
	a := s.get().Alerts
	if a == nil {
		a = DefaultConfig().Alerts
	}
	return a.RetentionMax, a.RetentionDays
}

// ToastTimeout is how long toasts stay when pushed without a timeout.
func (s *Settings) ToastTimeout() time.Duration {
	if a := s.get().Alerts; a != nil && a.ToastTimeoutMs > 0 {
		return time.Duration(a.ToastTimeoutMs) * time.Millisecond
	}
	return 5 * time.Second
}

// DisablePadding turns off zero padding in timer text.
func (s *Settings) DisablePadding() bool {
	t := s.get().Timers
	return t != nil && t.DisablePadding
}

// MaxLogRecords is the logs panel limit.
func (s *Settings) MaxLogRecords() int {
	if l := s.get().Logs; l != nil && l.MaxRecords > 0 {
		return l.MaxRecords
	}
	return 3000
}

// TailLogs reports whether local log files are followed.
func (s *Settings) TailLogs() bool {
	l := s.get().Logs
	return l != nil && l.Tail
}

// TailPollInterval is the tail fallback poll interval.
func (s *Settings) TailPollInterval() time.Duration {
	if l := s.get().Logs; l != nil && l.PollIntervalMs > 0 {
		return time.Duration(l.PollIntervalMs) * time.Millisecond
	}
	return 2 * time.Second
}
