// Package config holds the debug engine configuration.
//
// Defaults cover a stock setup (115200 baud, 100ms serial poll, localhost
// debug server). A JSON file may overlay any subset of fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Serial configures the serial debug transport.
type Serial struct {
	// Baud is the serial connection baud rate.
	Baud int `json:"baud"`

	// PollInterval is how often buffered serial bytes are drained.
	PollInterval time.Duration `json:"poll_interval"`

	// ReadTimeout bounds a single serial read so connect never blocks.
	ReadTimeout time.Duration `json:"read_timeout"`
}

// GDB configures the spawned-debugger transport.
type GDB struct {
	// Path is the gdb binary to spawn.
	Path string `json:"path"`

	// Server is the remote debug server address (host:port).
	Server string `json:"server"`

	// StopGrace is how long a polite "quit" may take before the child
	// process is killed.
	StopGrace time.Duration `json:"stop_grace"`
}

// Timeline configures the execution timeline.
type Timeline struct {
	// MaxEvents bounds the timeline; the oldest entry is evicted first.
	MaxEvents int `json:"max_events"`
}

// Breakpoints configures breakpoint persistence.
type Breakpoints struct {
	// PersistPath is where the breakpoint set is saved, empty to disable.
	PersistPath string `json:"persist_path"`
}

// Config is the full engine configuration.
type Config struct {
	Serial      Serial      `json:"serial"`
	GDB         GDB         `json:"gdb"`
	Timeline    Timeline    `json:"timeline"`
	Breakpoints Breakpoints `json:"breakpoints"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		Serial: Serial{
			Baud:         115200,
			PollInterval: 100 * time.Millisecond,
			ReadTimeout:  100 * time.Millisecond,
		},
		GDB: GDB{
			Path:      "gdb",
			Server:    "localhost:3333",
			StopGrace: time.Second,
		},
		Timeline: Timeline{
			MaxEvents: 1000,
		},
	}
}

// Load reads a JSON config file and overlays it onto the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.normalize(), nil
}

// normalize backfills zero values with defaults so a sparse file cannot
// produce a non-functional engine.
func (c Config) normalize() Config {
	def := Default()

	if c.Serial.Baud <= 0 {
		c.Serial.Baud = def.Serial.Baud
	}
	if c.Serial.PollInterval <= 0 {
		c.Serial.PollInterval = def.Serial.PollInterval
	}
	if c.Serial.ReadTimeout <= 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.GDB.Path == "" {
		c.GDB.Path = def.GDB.Path
	}
	if c.GDB.Server == "" {
		c.GDB.Server = def.GDB.Server
	}
	if c.GDB.StopGrace <= 0 {
		c.GDB.StopGrace = def.GDB.StopGrace
	}
	if c.Timeline.MaxEvents <= 0 {
		c.Timeline.MaxEvents = def.Timeline.MaxEvents
	}
	return c
}
