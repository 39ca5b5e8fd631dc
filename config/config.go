// Package config provides the middleware settings store: an INI-backed core
// configuration read through Viper plus a JSON side-store holding per-plugin
// configuration. The plugin manager and every plugin consume this package;
// nothing here reaches back into plugin code.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/finbridge/finbridge/errors"
)

// Config is the typed view of the core INI configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Web        WebConfig        `mapstructure:"web"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Plugins    PluginsConfig    `mapstructure:"plugins"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// WebConfig configures the host HTTP server
type WebConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProcessingConfig configures the document processing pipeline
type ProcessingConfig struct {
	UploadFolder      string `mapstructure:"upload_folder"`
	MaxFileSize       int64  `mapstructure:"max_file_size"`
	AllowedExtensions string `mapstructure:"allowed_extensions"` // comma-separated
}

// PluginsConfig configures plugin discovery
type PluginsConfig struct {
	Directory  string `mapstructure:"directory"`
	ConfigFile string `mapstructure:"config_file"` // JSON side-store path
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON bool `mapstructure:"json"`
}

// PluginConfig is one plugin's entry in the JSON side-store.
//
// Configured is an explicit flag set by whoever wrote real credentials into
// Settings. Plugins consult it instead of string-matching placeholder values,
// so an unconfigured plugin can boot degraded without guessing.
type PluginConfig struct {
	Enabled    bool                   `json:"enabled"`
	Configured bool                   `json:"configured"`
	Settings   map[string]interface{} `json:"settings"`
}

// Settings is the runtime settings accessor shared by the host and plugins.
type Settings struct {
	mu      sync.RWMutex
	v       *viper.Viper
	cfg     *Config
	path    string
	plugins map[string]PluginConfig
}

// Load reads settings from an INI file and its plugin JSON side-store.
// A missing INI file is not an error: defaults apply and the file is created
// on the first Save.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetEnvPrefix("FINBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := mergeINIFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "unmarshal %s: %v", path, err)
	}

	s := &Settings{
		v:       v,
		cfg:     &cfg,
		path:    path,
		plugins: make(map[string]PluginConfig),
	}

	if err := s.loadPluginConfigs(); err != nil {
		return nil, err
	}
	return s, nil
}

// mergeINIFile layers an INI file over the viper defaults. Viper no longer
// ships an INI decoder, so the file goes through ini.v1 and is merged in as a
// section-to-key map. A missing file is not an error: defaults apply.
func mergeINIFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(errors.ErrConfiguration, "read %s: %v", path, err)
	}

	f, err := ini.Load(data)
	if err != nil {
		return errors.Wrapf(errors.ErrConfiguration, "parse %s: %v", path, err)
	}

	merged := make(map[string]interface{})
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if len(keys) == 0 {
			continue
		}
		if sec.Name() == ini.DefaultSection {
			for _, k := range keys {
				merged[k.Name()] = k.Value()
			}
			continue
		}
		kv := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			kv[k.Name()] = k.Value()
		}
		merged[sec.Name()] = kv
	}
	if err := v.MergeConfigMap(merged); err != nil {
		return errors.Wrapf(errors.ErrConfiguration, "merge %s: %v", path, err)
	}
	return nil
}

// Core returns the typed core configuration.
func (s *Settings) Core() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Get returns a string value for section/key, or fallback when unset.
func (s *Settings) Get(section, key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := section + "." + key
	if !s.v.IsSet(k) {
		return fallback
	}
	return s.v.GetString(k)
}

// GetBool returns a boolean value for section/key, or fallback when unset.
func (s *Settings) GetBool(section, key string, fallback bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := section + "." + key
	if !s.v.IsSet(k) {
		return fallback
	}
	return s.v.GetBool(k)
}

// GetInt returns an integer value for section/key, or fallback when unset.
func (s *Settings) GetInt(section, key string, fallback int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := section + "." + key
	if !s.v.IsSet(k) {
		return fallback
	}
	return s.v.GetInt(k)
}

// GetFloat returns a float value for section/key, or fallback when unset.
func (s *Settings) GetFloat(section, key string, fallback float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := section + "." + key
	if !s.v.IsSet(k) {
		return fallback
	}
	return s.v.GetFloat64(k)
}

// Set stores a value under section/key in the in-memory view.
// Call Save to persist.
func (s *Settings) Set(section, key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(section+"."+key, value)
}

// GetSection returns all keys of an INI section as a string map.
func (s *Settings) GetSection(section string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	sub := s.v.GetStringMap(section)
	for k := range sub {
		out[k] = s.v.GetString(section + "." + k)
	}
	return out
}

// HasSection reports whether the INI section exists.
func (s *Settings) HasSection(section string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.v.GetStringMap(section)) > 0
}

// Save writes the core configuration back to its INI file. Sections and keys
// come out sorted so reloading and re-saving a file is stable.
func (s *Settings) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	f := ini.Empty()
	all := s.v.AllSettings()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kv, ok := all[name].(map[string]interface{})
		if !ok {
			continue
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return errors.Wrapf(errors.ErrConfiguration, "write %s: %v", s.path, err)
		}
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := sec.NewKey(k, fmt.Sprintf("%v", kv[k])); err != nil {
				return errors.Wrapf(errors.ErrConfiguration, "write %s: %v", s.path, err)
			}
		}
	}

	if err := f.SaveTo(s.path); err != nil {
		return errors.Wrapf(errors.ErrConfiguration, "write %s: %v", s.path, err)
	}
	return nil
}
