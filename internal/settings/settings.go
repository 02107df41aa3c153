package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds engine configuration loaded from .loom/settings.yaml.
// Topology documents describe pipelines; settings describe the machine the
// pipelines run on (capability command, model tiers, logging, storage).
type Settings struct {
	Capability CapabilitySettings `mapstructure:"capability"`
	Logging    LoggingSettings    `mapstructure:"logging"`
	Session    SessionSettings    `mapstructure:"session"`
	Facts      FactsSettings      `mapstructure:"facts"`
}

// CapabilitySettings configures the external text-generation capability.
type CapabilitySettings struct {
	// Command is the agent CLI binary invoked for every phase.
	Command string `mapstructure:"command"`
	// FastModel and ComplexModel map the two invocation tiers to concrete
	// model names. Topologies never name models, only tiers.
	FastModel    string `mapstructure:"fast_model"`
	ComplexModel string `mapstructure:"complex_model"`
	// TimeoutMinutes bounds a single invocation. 0 disables the bound.
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

type LoggingSettings struct {
	Level string `mapstructure:"level"`
}

// SessionSettings configures the intake session machine. The session TTL and
// round limit are protocol constants and deliberately not configurable.
type SessionSettings struct {
	// CancelWords end an active session when a message matches one.
	CancelWords []string `mapstructure:"cancel_words"`
}

type FactsSettings struct {
	// Path is the SQLite database file, relative to the project root.
	Path string `mapstructure:"path"`
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads settings from <projectRoot>/.loom/settings.yaml, filling
// defaults for anything unset. A missing file is not an error: every field
// has a default. LOOM_-prefixed environment variables override the file.
func Load(projectRoot string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Join(projectRoot, ".loom", "settings.yaml"))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("settings: reading config: %w", err)
	}

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capability.command", "claude")
	v.SetDefault("capability.fast_model", "sonnet")
	v.SetDefault("capability.complex_model", "opus")
	v.SetDefault("capability.timeout_minutes", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("session.cancel_words", []string{"cancel", "stop", "abort"})
	v.SetDefault("facts.path", filepath.Join(".loom", "facts.db"))
}

// Validate checks the loaded settings for errors.
func (s *Settings) Validate() error {
	if s.Capability.Command == "" {
		return fmt.Errorf("settings: capability.command is required")
	}
	if s.Capability.FastModel == "" || s.Capability.ComplexModel == "" {
		return fmt.Errorf("settings: capability fast_model and complex_model are required")
	}
	if s.Capability.TimeoutMinutes < 0 {
		return fmt.Errorf("settings: capability.timeout_minutes must be >= 0")
	}
	if !validLevels[s.Logging.Level] {
		return fmt.Errorf("settings: unknown logging level %q (must be debug, info, warn, or error)", s.Logging.Level)
	}
	if s.Facts.Path == "" {
		return fmt.Errorf("settings: facts.path is required")
	}
	return nil
}

// FactsPath resolves the fact database path against the project root.
func (s *Settings) FactsPath(projectRoot string) string {
	if filepath.IsAbs(s.Facts.Path) {
		return s.Facts.Path
	}
	return filepath.Join(projectRoot, s.Facts.Path)
}
