// Package engineconf is the engine's single source of tunables: sample
// rate, block size, poll profile, timer-wheel intervals, and log rotation
// settings. There is no project-level CLI/config surface in scope for this
// core (see spec §6) — this package exists so the engine's own bootstrap and
// tests load settings the same idiomatic way the rest of the codebase does,
// via spf13/viper layered over an embedded YAML default.
package engineconf

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var defaultConfig embed.FS

// PollProfile selects the sleep-granularity tuning used by the process
// thread and the audio callback handler (see spec §4.7).
type PollProfile string

const (
	// PollProfileFine assumes ~100µs sleep resolution (most Unix targets).
	PollProfileFine PollProfile = "fine"
	// PollProfileCoarse assumes ~1ms sleep resolution (Windows-class).
	PollProfileCoarse PollProfile = "coarse"
)

// EngineSettings are the tunables the engine bootstrap reads once at
// startup. None of these are safe to change after the engine is running;
// a change requires restarting the engine instance.
type EngineSettings struct {
	SampleRate        int         `mapstructure:"sample_rate"`
	MaxBlockSize      int         `mapstructure:"max_block_size"`
	HardClipOutputs   bool        `mapstructure:"hard_clip_outputs"`
	PollProfile       PollProfile `mapstructure:"poll_profile"`
	MaxEventsPerBlock int         `mapstructure:"max_events_per_block"`
}

// TimerSettings configure the main-thread timer wheel (spec §4.8).
type TimerSettings struct {
	MainIdleIntervalMS       int `mapstructure:"main_idle_interval_ms"`
	GarbageCollectIntervalMS int `mapstructure:"garbage_collect_interval_ms"`
}

// LoggingSettings configure the rotating log sink (spec §4.10).
type LoggingSettings struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Settings is the top-level settings tree, mirroring config.yaml's layout.
type Settings struct {
	Engine  EngineSettings  `mapstructure:"engine"`
	Timer   TimerSettings   `mapstructure:"timer"`
	Logging LoggingSettings `mapstructure:"logging"`
}

// Load reads the embedded defaults, then layers an optional override file
// (overridePath may be empty, in which case only the defaults apply) and
// environment variables prefixed ENGINE_ (e.g. ENGINE_ENGINE_SAMPLE_RATE).
func Load(overridePath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := defaultConfig.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("engineconf: read embedded defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("engineconf: parse embedded defaults: %w", err)
	}

	if overridePath != "" {
		v.SetConfigFile(overridePath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("engineconf: merge override %q: %w", overridePath, err)
		}
	}

	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("engineconf: unmarshal settings: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.Engine.SampleRate <= 0 {
		return fmt.Errorf("engineconf: sample_rate must be positive, got %d", s.Engine.SampleRate)
	}
	if s.Engine.MaxBlockSize <= 0 {
		return fmt.Errorf("engineconf: max_block_size must be positive, got %d", s.Engine.MaxBlockSize)
	}
	if s.Engine.MaxEventsPerBlock <= 0 {
		return fmt.Errorf("engineconf: max_events_per_block must be positive, got %d", s.Engine.MaxEventsPerBlock)
	}
	switch s.Engine.PollProfile {
	case PollProfileFine, PollProfileCoarse:
	default:
		return fmt.Errorf("engineconf: unknown poll_profile %q", s.Engine.PollProfile)
	}
	if s.Timer.MainIdleIntervalMS <= 0 {
		return fmt.Errorf("engineconf: main_idle_interval_ms must be positive, got %d", s.Timer.MainIdleIntervalMS)
	}
	if s.Timer.GarbageCollectIntervalMS < s.Timer.MainIdleIntervalMS {
		return fmt.Errorf("engineconf: garbage_collect_interval_ms must be >= main_idle_interval_ms")
	}
	return nil
}
