// Package config loads the eventsys configuration.
//
// Settings are layered with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← EVENTSYS_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← eventsys.toml or eventsys.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Files use dotted sections with camelCase keys:
//
//	[event]
//	maxArgs = 64
//
//	[watch]
//	enabled = true
//	debounce = "250ms"
//
// Unknown keys in a file are rejected. Unknown EVENTSYS_* variables are
// ignored.
package config
