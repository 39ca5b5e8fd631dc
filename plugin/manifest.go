package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/finbridge/finbridge/errors"
)

// ManifestFileName is the entry-point file a plugin directory must contain
// to be discovered.
const ManifestFileName = "plugin.toml"

// Manifest is a plugin's on-disk descriptor. The directory name is the
// plugin's canonical name; the manifest's name field must match it.
type Manifest struct {
	// Name is the plugin identifier
	Name string `toml:"name"`

	// Version is the plugin version (semver)
	Version string `toml:"version"`

	// Enabled controls whether the plugin participates in InitializeAll.
	// Absent means enabled.
	Enabled *bool `toml:"enabled"`

	// HostVersion is an optional semver constraint on the host version
	HostVersion string `toml:"host_version"`

	// Dependencies are plugin names that must initialize before this one
	Dependencies []string `toml:"dependencies"`
}

// IsEnabled reports the manifest's enabled flag, defaulting to true.
func (m *Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ReadManifest loads and validates a plugin.toml from a plugin directory.
func ReadManifest(dir, name string) (*Manifest, error) {
	path := filepath.Join(dir, name, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPluginNotFound("manifest not found: %s", path)
		}
		return nil, errors.Wrapf(errors.ErrPluginLoad, "read %s: %v", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(errors.ErrPluginLoad, "parse %s: %v", path, err)
	}

	if m.Name == "" {
		m.Name = name
	}
	if m.Name != name {
		return nil, errors.NewPluginLoad("manifest name %q does not match directory %q", m.Name, name)
	}
	return &m, nil
}

// validateHostVersion checks the manifest's host_version constraint against
// the running host version. Dev builds without a parseable version skip the
// check.
func (m *Manifest) validateHostVersion(hostVersion string) error {
	if m.HostVersion == "" {
		return nil
	}

	hv, err := semver.NewVersion(hostVersion)
	if err != nil {
		// Unreleased builds carry "dev"; constraints cannot apply.
		return nil
	}

	constraint, err := semver.NewConstraint(m.HostVersion)
	if err != nil {
		return errors.NewPluginLoad("invalid host_version constraint %q: %v", m.HostVersion, err)
	}

	if !constraint.Check(hv) {
		return errors.NewPluginLoad("plugin %s requires host %s, but running %s", m.Name, m.HostVersion, hostVersion)
	}
	return nil
}

// Factory constructs a plugin instance. The manager passes the canonical
// plugin name so one factory can serve renamed installs.
type Factory func(name string) Plugin

// Plugins register factories explicitly instead of being located by class
// naming conventions, so load failures are deterministic and greppable.
var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers the constructor for a plugin name. Typically
// called from a plugin package's init or from the host's wiring code.
// Re-registering a name panics; that is a programming error.
func RegisterFactory(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		panic("plugin factory already registered: " + name)
	}
	factories[name] = factory
}

// LookupFactory returns the registered factory for a plugin name.
func LookupFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// RegisteredFactories returns all registered factory names, sorted.
func RegisteredFactories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
