package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/finbridge/finbridge/errors"
)

// pluginConfigPath resolves the JSON side-store path relative to the INI file.
func (s *Settings) pluginConfigPath() string {
	p := s.cfg.Plugins.ConfigFile
	if p == "" {
		p = "plugin_configs.json"
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(s.path), p)
	}
	return p
}

// loadPluginConfigs reads the JSON side-store. A missing file yields an
// empty set, not an error.
func (s *Settings) loadPluginConfigs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pluginConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.plugins = make(map[string]PluginConfig)
			return nil
		}
		return errors.Wrapf(errors.ErrConfiguration, "read plugin configs %s: %v", path, err)
	}

	configs := make(map[string]PluginConfig)
	if err := json.Unmarshal(data, &configs); err != nil {
		return errors.Wrapf(errors.ErrConfiguration, "parse plugin configs %s: %v", path, err)
	}
	s.plugins = configs
	return nil
}

// ReloadPluginConfigs re-reads the JSON side-store from disk, replacing the
// in-memory plugin configuration set.
func (s *Settings) ReloadPluginConfigs() error {
	return s.loadPluginConfigs()
}

// GetPluginConfig returns the configuration for one plugin. The zero value
// (disabled, unconfigured, nil settings) is returned for unknown plugins.
func (s *Settings) GetPluginConfig(name string) PluginConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.plugins[name]
	if !ok {
		return PluginConfig{}
	}
	// Copy the settings map so callers cannot mutate the store.
	out := cfg
	out.Settings = make(map[string]interface{}, len(cfg.Settings))
	for k, v := range cfg.Settings {
		out.Settings[k] = v
	}
	return out
}

// SetPluginConfig replaces the configuration for one plugin in memory.
// Call SavePluginConfigs to persist.
func (s *Settings) SetPluginConfig(name string, cfg PluginConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins[name] = cfg
}

// AllPluginConfigs returns a copy of every plugin's configuration.
func (s *Settings) AllPluginConfigs() map[string]PluginConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PluginConfig, len(s.plugins))
	for name, cfg := range s.plugins {
		out[name] = cfg
	}
	return out
}

// IsPluginEnabled reports whether a plugin's side-store entry is enabled.
// Plugins with no entry default to enabled so fresh installs boot everything
// they discover.
func (s *Settings) IsPluginEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.plugins[name]
	if !ok {
		return true
	}
	return cfg.Enabled
}

// EnablePlugin marks a plugin enabled in the side-store.
func (s *Settings) EnablePlugin(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.plugins[name]
	cfg.Enabled = true
	s.plugins[name] = cfg
}

// DisablePlugin marks a plugin disabled in the side-store.
func (s *Settings) DisablePlugin(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.plugins[name]
	cfg.Enabled = false
	s.plugins[name] = cfg
}

// SavePluginConfigs writes the JSON side-store back to disk.
func (s *Settings) SavePluginConfigs() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.plugins, "", "  ")
	path := s.pluginConfigPath()
	s.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal plugin configs")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrConfiguration, "write plugin configs %s: %v", path, err)
	}
	return nil
}
