package config

import (
	"fmt"
	"strings"
	"time"
)

// setting binds a dotted path to a Config field.
type setting struct {
	path string
	kind string
	set  func(c *Config, v any) bool
	get  func(c *Config) any
}

// settings lists every configurable path.
var settings = []setting{
	stringSetting("log.level", func(c *Config) *string { return &c.Log.Level }),
	intSetting("event.maxArgs", func(c *Config) *int { return &c.Event.MaxArgs }),
	intSetting("task.maxArgs", func(c *Config) *int { return &c.Task.MaxArgs }),
	boolSetting("lua.unsafe", func(c *Config) *bool { return &c.Lua.Unsafe }),
	intSetting("lua.queueSize", func(c *Config) *int { return &c.Lua.QueueSize }),
	intSetting("lua.maxResumeArgs", func(c *Config) *int { return &c.Lua.MaxResumeArgs }),
	stringSetting("report.format", func(c *Config) *string { return &c.Report.Format }),
	boolSetting("watch.enabled", func(c *Config) *bool { return &c.Watch.Enabled }),
	durationSetting("watch.debounce", func(c *Config) *time.Duration { return &c.Watch.Debounce }),
	boolSetting("metrics.enabled", func(c *Config) *bool { return &c.Metrics.Enabled }),
}

// lookupSetting finds the setting for path.
func lookupSetting(path string) (setting, bool) {
	for _, s := range settings {
		if s.path == path {
			return s, true
		}
	}
	return setting{}, false
}

// setValue assigns v, reporting a *TypeError when it has the wrong type.
func (s setting) setValue(c *Config, v any) error {
	if !s.set(c, v) {
		return &TypeError{Path: s.path, Expected: s.kind, Actual: fmt.Sprintf("%T", v)}
	}
	return nil
}

func stringSetting(path string, field func(*Config) *string) setting {
	return setting{
		path: path,
		kind: "string",
		set: func(c *Config, v any) bool {
			s, ok := v.(string)
			if ok {
				*field(c) = strings.ToLower(s)
			}
			return ok
		},
		get: func(c *Config) any { return *field(c) },
	}
}

func intSetting(path string, field func(*Config) *int) setting {
	return setting{
		path: path,
		kind: "integer",
		set: func(c *Config, v any) bool {
			n, ok := toInt(v)
			if ok {
				*field(c) = n
			}
			return ok
		},
		get: func(c *Config) any { return int64(*field(c)) },
	}
}

func boolSetting(path string, field func(*Config) *bool) setting {
	return setting{
		path: path,
		kind: "boolean",
		set: func(c *Config, v any) bool {
			switch b := v.(type) {
			case bool:
				*field(c) = b
				return true
			case int64:
				if b == 0 || b == 1 {
					*field(c) = b == 1
					return true
				}
			}
			return false
		},
		get: func(c *Config) any { return *field(c) },
	}
}

// durationSetting accepts duration strings such as "250ms"; bare integers
// are milliseconds.
func durationSetting(path string, field func(*Config) *time.Duration) setting {
	return setting{
		path: path,
		kind: "duration",
		set: func(c *Config, v any) bool {
			switch d := v.(type) {
			case time.Duration:
				*field(c) = d
				return true
			case string:
				parsed, err := time.ParseDuration(d)
				if err != nil {
					return false
				}
				*field(c) = parsed
				return true
			}
			if n, ok := toInt(v); ok {
				*field(c) = time.Duration(n) * time.Millisecond
				return true
			}
			return false
		},
		get: func(c *Config) any { return field(c).String() },
	}
}

// toInt converts the integer types produced by the TOML and YAML decoders.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// flatten turns nested maps into dotted paths.
func flatten(prefix string, data map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range data {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			for p, inner := range flatten(path, m) {
				out[p] = inner
			}
			continue
		}
		out[path] = v
	}
	return out
}

// splitPath splits "section.key".
func splitPath(path string) (section, key string) {
	section, key, _ = strings.Cut(path, ".")
	return section, key
}
