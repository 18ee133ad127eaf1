// Package config loads the focus-timer daemon settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/focus-timer/internal/logic"
)

// ErrInvalid is returned when a loaded setting is out of range.
var ErrInvalid = errors.New("invalid config")

// Config is the full daemon configuration.
type Config struct {
	Timer     TimerConfig   `yaml:"timer"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      HTTPConfig    `yaml:"http"`
	GPIO      GPIOConfig    `yaml:"gpio"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// TimerConfig holds the block settings applied at startup.
type TimerConfig struct {
	Block  time.Duration `yaml:"block"`
	Chunks int           `yaml:"chunks"`
	Break  time.Duration `yaml:"break"`
	Reset  time.Duration `yaml:"reset"`
}

// MQTTConfig configures the event publisher. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig configures the status and control server. An empty addr
// disables it.
type HTTPConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// GPIOConfig configures the start and abort push buttons.
type GPIOConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Chip     string        `yaml:"chip"`
	PinStart int           `yaml:"pin_start"`
	PinAbort int           `yaml:"pin_abort"`
	Debounce time.Duration `yaml:"debounce"`
	Poll     time.Duration `yaml:"poll"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	d := logic.DefaultConfig()
	return Config{
		Timer: TimerConfig{
			Block:  time.Duration(d.BlockDuration) * time.Second,
			Chunks: d.TotalChunks,
			Break:  time.Duration(d.BreakDuration) * time.Second,
			Reset:  time.Duration(d.ResetDuration) * time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:    "focus-timer",
			TopicPrefix: "focus/timer",
			BufferSize:  100,
		},
		HTTP: HTTPConfig{
			Addr:      ":8080",
			RateLimit: 5,
			RateBurst: 10,
		},
		GPIO: GPIOConfig{
			Chip:     "gpiochip0",
			PinStart: 17,
			PinAbort: 27,
			Debounce: 50 * time.Millisecond,
			Poll:     10 * time.Millisecond,
		},
		Heartbeat: 15 * time.Minute,
	}
}

// Load reads settings from path. Fields missing from the file keep their
// defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config yaml: %w", err)
	}
	return data, nil
}

// Validate checks ranges that the timer and transports rely on.
func (c Config) Validate() error {
	if _, err := c.Timer.Logic(); err != nil {
		return fmt.Errorf("%w: timer: %v", ErrInvalid, err)
	}
	if c.MQTT.BufferSize < 0 {
		return fmt.Errorf("%w: mqtt.buffer_size must not be negative", ErrInvalid)
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return fmt.Errorf("%w: http rate limit must not be negative", ErrInvalid)
	}
	if c.GPIO.Enabled {
		if c.GPIO.PinStart == c.GPIO.PinAbort {
			return fmt.Errorf("%w: gpio start and abort pins are both %d", ErrInvalid, c.GPIO.PinStart)
		}
		if c.GPIO.Poll <= 0 {
			return fmt.Errorf("%w: gpio.poll must be positive", ErrInvalid)
		}
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid)
	}
	return nil
}

// Logic converts the durations to whole seconds for the timer core.
func (t TimerConfig) Logic() (logic.Config, error) {
	for name, d := range map[string]time.Duration{"block": t.Block, "break": t.Break, "reset": t.Reset} {
		if d%time.Second != 0 {
			return logic.Config{}, fmt.Errorf("%s %v is not a whole number of seconds", name, d)
		}
	}
	lc := logic.Config{
		BlockDuration: int(t.Block / time.Second),
		TotalChunks:   t.Chunks,
		BreakDuration: int(t.Break / time.Second),
		ResetDuration: int(t.Reset / time.Second),
	}
	if err := lc.Validate(); err != nil {
		return logic.Config{}, err
	}
	return lc, nil
}

// TestProfile returns the short timer settings for trying the daemon out.
func TestProfile() TimerConfig {
	tc := logic.TestConfig()
	return TimerConfig{
		Block:  time.Duration(tc.BlockDuration) * time.Second,
		Chunks: tc.TotalChunks,
		Break:  time.Duration(tc.BreakDuration) * time.Second,
		Reset:  time.Duration(tc.ResetDuration) * time.Second,
	}
}
