package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dshills/eventsys/internal/config/loader"
	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/task"
)

// Report formats.
const (
	ReportText = "text"
	ReportLog  = "log"
)

// Config is the complete eventsys configuration.
type Config struct {
	Log     LogConfig
	Event   EventConfig
	Task    TaskConfig
	Lua     LuaConfig
	Report  ReportConfig
	Watch   WatchConfig
	Metrics MetricsConfig
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string
}

// EventConfig configures events created by the host and by scripts.
type EventConfig struct {
	// MaxArgs bounds the values a single Fire may forward.
	MaxArgs int
}

// TaskConfig configures Go tasks.
type TaskConfig struct {
	// MaxArgs bounds the values a single Resume may carry.
	MaxArgs int
}

// LuaConfig configures the script host.
type LuaConfig struct {
	// Unsafe opens the io, os and debug libraries.
	Unsafe bool
	// QueueSize is the executor queue length.
	QueueSize int
	// MaxResumeArgs bounds the values a Lua waiter can be resumed with.
	MaxResumeArgs int
}

// ReportConfig configures how dispatch failures are reported.
type ReportConfig struct {
	// Format is "text" for framed blocks on stderr or "log" for log lines.
	Format string
}

// WatchConfig configures script reloading.
type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
}

// MetricsConfig configures dispatch metrics.
type MetricsConfig struct {
	Enabled bool
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info"},
		Event:   EventConfig{MaxArgs: event.DefaultMaxArgs},
		Task:    TaskConfig{MaxArgs: task.DefaultMaxArgs},
		Lua:     LuaConfig{QueueSize: 100, MaxResumeArgs: task.DefaultMaxArgs},
		Report:  ReportConfig{Format: ReportText},
		Watch:   WatchConfig{Debounce: 250 * time.Millisecond},
		Metrics: MetricsConfig{},
	}
}

// Load reads the configuration file at path, applies EVENTSYS_* environment
// overrides and validates the result. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load reading the file from fsys.
func LoadFS(fsys loader.FileSystem, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		data, err := l.LoadFrom(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Apply(data, true); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	env, err := loader.NewEnvLoader(loader.EnvPrefix).Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(env, false); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply sets every setting present in the nested map data. When strict is
// true, paths that name no setting are rejected.
func (c *Config) Apply(data map[string]any, strict bool) error {
	var errs []error
	for path, value := range flatten("", data) {
		s, ok := lookupSetting(path)
		if !ok {
			if strict {
				errs = append(errs, &ValidationError{
					Path:    path,
					Message: "unknown setting",
					Value:   value,
					Code:    ErrCodeUnknownSetting,
				})
			}
			continue
		}
		if err := s.setValue(c, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, c.Log.Level) {
		errs = append(errs, enumError("log.level", c.Log.Level))
	}
	if !slices.Contains([]string{ReportText, ReportLog}, c.Report.Format) {
		errs = append(errs, enumError("report.format", c.Report.Format))
	}

	for _, r := range []struct {
		path  string
		value int
		min   int
	}{
		{"event.maxArgs", c.Event.MaxArgs, 0},
		{"task.maxArgs", c.Task.MaxArgs, 0},
		{"lua.maxResumeArgs", c.Lua.MaxResumeArgs, 0},
		{"lua.queueSize", c.Lua.QueueSize, 1},
	} {
		if r.value < r.min {
			errs = append(errs, &ValidationError{
				Path:    r.path,
				Message: fmt.Sprintf("must be at least %d", r.min),
				Value:   r.value,
				Code:    ErrCodeOutOfRange,
			})
		}
	}

	if c.Watch.Debounce < 0 {
		errs = append(errs, &ValidationError{
			Path:    "watch.debounce",
			Message: "must not be negative",
			Value:   c.Watch.Debounce,
			Code:    ErrCodeOutOfRange,
		})
	}

	return errors.Join(errs...)
}

// Map renders the configuration as a nested map keyed like the files it is
// loaded from.
func (c *Config) Map() map[string]any {
	out := make(map[string]any)
	for _, s := range settings {
		section, key := splitPath(s.path)
		m, ok := out[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			out[section] = m
		}
		m[key] = s.get(c)
	}
	return out
}

// MarshalTOML renders the configuration as TOML.
func (c *Config) MarshalTOML() ([]byte, error) {
	return loader.MarshalTOML(c.Map())
}

func enumError(path, value string) *ValidationError {
	return &ValidationError{
		Path:    path,
		Message: "unsupported value",
		Value:   value,
		Code:    ErrCodeInvalidEnum,
	}
}
