package plugin

import (
	"context"

	"github.com/finbridge/finbridge/config"
)

// Base carries the common plugin state and default contract behavior.
// Concrete plugins embed it and override what they need:
//
//	type myPlugin struct {
//	    plugin.Base
//	}
//
//	func newMyPlugin(name string) *myPlugin {
//	    return &myPlugin{Base: plugin.NewBase(name, "1.0.0")}
//	}
type Base struct {
	name    string
	version string
	enabled bool
	deps    []string

	// Config is the side-store entry injected by the manager before
	// ValidateConfig runs.
	Config config.PluginConfig
}

// NewBase creates the embedded base for a plugin. Dependencies list the
// plugin names that must initialize first.
func NewBase(name, version string, deps ...string) Base {
	return Base{
		name:    name,
		version: version,
		enabled: true,
		deps:    deps,
	}
}

// Info returns the plugin's identity
func (b *Base) Info() Info {
	return Info{Name: b.name, Version: b.version, Enabled: b.enabled}
}

// Dependencies returns the declared dependency names
func (b *Base) Dependencies() []string {
	out := make([]string, len(b.deps))
	copy(out, b.deps)
	return out
}

// SetEnabled toggles the plugin's enabled flag
func (b *Base) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// SetConfig stores the injected configuration
func (b *Base) SetConfig(cfg config.PluginConfig) {
	b.Config = cfg
}

// ValidateConfig accepts any configuration. Plugins with required fields
// override this.
func (b *Base) ValidateConfig(cfg config.PluginConfig) error {
	return nil
}

// Cleanup releases nothing by default
func (b *Base) Cleanup(ctx context.Context) error {
	return nil
}

// Health reports healthy iff the plugin is enabled, disabled otherwise.
// Plugins with richer state (degraded credentials, broken connections)
// override this.
func (b *Base) Health() HealthStatus {
	status := StatusHealthy
	if !b.enabled {
		status = StatusDisabled
	}
	return HealthStatus{
		Name:    b.name,
		Version: b.version,
		Enabled: b.enabled,
		Status:  status,
	}
}

// ConfigString returns a string setting from the injected config, or
// fallback when absent or not a string.
func (b *Base) ConfigString(key, fallback string) string {
	if v, ok := b.Config.Settings[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
