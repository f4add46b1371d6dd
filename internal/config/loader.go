package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SWIMLENS_EXPORT_QUALITY.
const EnvPrefix = "SWIMLENS"

// envKeys lists the settings that may be overridden from the environment as
// section.key pairs; root keys have no section.
var envKeys = []string{
	"save_dir", "log_level", "app_name", "theme",
	"tools.color", "tools.thickness", "tools.pen_thickness", "tools.arrow_style",
	"reference.line_count", "reference.vertical_line_count", "reference.line_thickness",
	"reference.show_horizontal", "reference.show_vertical", "reference.waterline",
	"reference.show_waterline", "reference.color", "reference.waterline_color",
	"export.format", "export.quality", "export.playback_rate", "export.fps", "export.gap",
	"export.transcode", "export.ffmpeg", "export.include_annotations",
	"notify.export", "notify.export_failed", "notify.copy",
}

// Loader handles loading the configuration.
type Loader struct {
	Version      string // Build version, used to determine dev mode
	OverridePath string // -config flag or compile time path
}

// NewLoader creates a new Loader.
func NewLoader(version string, overridePath string) *Loader {
	return &Loader{
		Version:      version,
		OverridePath: overridePath,
	}
}

// Load reads the RC file, if any, and applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := New()
	if path := l.GetConfigPath(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if cfg, err = Parse(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays SWIMLENS_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
		if !v.IsSet(key) {
			continue
		}
		section, name := "", key
		if i := strings.IndexByte(key, '.'); i >= 0 {
			section, name = key[:i], key[i+1:]
		}
		if err := cfg.Set(section, name, v.GetString(key)); err != nil {
			return fmt.Errorf("environment %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
		}
	}
	return nil
}

// GetConfigPath returns the path to the configuration file, or empty string if not found.
func (l *Loader) GetConfigPath() string {
	if l.OverridePath != "" {
		if _, err := os.Stat(l.OverridePath); err == nil {
			return l.OverridePath
		}
	}

	if l.Version == "dev" {
		wd, _ := os.Getwd()
		localPath := filepath.Join(wd, ".swimlensrc")
		if _, err := os.Stat(localPath); err == nil {
			return localPath
		}
	}

	home, _ := os.UserHomeDir()
	for _, name := range []string{"config.rc", "swimlens.rc"} {
		p := filepath.Join(home, ".config", "swimlens", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath is where `config save` writes when no path is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "swimlens", "config.rc")
}

// Save writes cfg to path in RC format, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cfg.String()), 0o644)
}
