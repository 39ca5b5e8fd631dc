package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/errors"
)

// Manager owns plugin discovery, loading, initialization, categorization,
// and lifecycle. All registry mutation is serialized behind a RWMutex;
// concurrent Reload calls for the same name are safe.
type Manager struct {
	mu          sync.RWMutex
	dir         string
	settings    *config.Settings
	hostVersion string
	log         *zap.SugaredLogger

	manifests map[string]*Manifest
	states    map[string]State

	// Registry: by-name map plus four capability views over the same
	// instances. Eviction always touches all of them together.
	plugins     map[string]Plugin
	initialized []string
	web         []WebPlugin
	api         []APIPlugin
	processing  []ProcessingPlugin
	integration []IntegrationPlugin

	failed   []string
	failures map[string]string
}

// NewManager creates a manager over a plugins directory. settings may be
// nil in tests; hostVersion is checked against manifest constraints.
func NewManager(dir string, settings *config.Settings, hostVersion string, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		dir:         dir,
		settings:    settings,
		hostVersion: hostVersion,
		log:         log,
		manifests:   make(map[string]*Manifest),
		states:      make(map[string]State),
		plugins:     make(map[string]Plugin),
		failures:    make(map[string]string),
	}
}

// Discover scans the plugins directory one level deep. A directory qualifies
// iff its name does not start with "_" and it contains a plugin.toml.
// Results are sorted for determinism.
func (m *Manager) Discover() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.log.Warnw("Plugins directory not readable", "dir", m.dir, "error", err)
		return nil
	}

	var discovered []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) == 0 || entry.Name()[0] == '_' {
			continue
		}
		if _, err := os.Stat(m.manifestPath(entry.Name())); err != nil {
			continue
		}
		discovered = append(discovered, entry.Name())
	}
	sort.Strings(discovered)

	m.mu.Lock()
	for _, name := range discovered {
		if _, known := m.states[name]; !known {
			m.states[name] = StateDiscovered
		}
	}
	m.mu.Unlock()

	m.log.Debugw("Discovered plugins", "count", len(discovered), "names", discovered)
	return discovered
}

func (m *Manager) manifestPath(name string) string {
	return filepath.Join(m.dir, name, ManifestFileName)
}

// Load reads a plugin's manifest and resolves its factory. Idempotent: a
// previously loaded manifest is reused until Reload evicts it.
func (m *Manager) Load(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(name)
}

func (m *Manager) loadLocked(name string) error {
	if _, ok := m.manifests[name]; ok {
		return nil
	}

	manifest, err := ReadManifest(m.dir, name)
	if err != nil {
		m.states[name] = StateLoadFailed
		m.recordFailureLocked(name, err)
		return err
	}

	if err := manifest.validateHostVersion(m.hostVersion); err != nil {
		m.states[name] = StateLoadFailed
		m.recordFailureLocked(name, err)
		return err
	}

	if _, ok := LookupFactory(name); !ok {
		err := errors.NewPluginLoad("no factory registered for %q", name)
		m.states[name] = StateLoadFailed
		m.recordFailureLocked(name, err)
		return err
	}

	m.manifests[name] = manifest
	m.states[name] = StateLoaded
	m.log.Infow("Loaded plugin", "name", name, "version", manifest.Version)
	return nil
}

// Initialize loads (if needed), constructs, configures, validates, and
// initializes one plugin, then registers it into the by-name map and every
// matching capability list. Failures never propagate: they are recorded in
// the failed list and surfaced via Status.
func (m *Manager) Initialize(ctx context.Context, name string, host *HostContext) bool {
	if err := m.initialize(ctx, name, host); err != nil {
		m.mu.Lock()
		if m.states[name] != StateLoadFailed {
			m.states[name] = StateInitFailed
		}
		m.recordFailureLocked(name, err)
		m.mu.Unlock()
		m.log.Errorw("Failed to initialize plugin", "name", name, "error", err)
		return false
	}
	m.log.Infow("Initialized plugin", "name", name)
	return true
}

func (m *Manager) initialize(ctx context.Context, name string, host *HostContext) error {
	m.mu.Lock()

	// Idempotent on a live plugin: nothing to do, nothing to record.
	if _, live := m.plugins[name]; live {
		m.mu.Unlock()
		return nil
	}

	if err := m.loadLocked(name); err != nil {
		m.mu.Unlock()
		return err
	}
	manifest := m.manifests[name]

	// Dependency check: every declared dependency must already be live.
	for _, dep := range manifest.Dependencies {
		if _, ok := m.plugins[dep]; !ok {
			m.mu.Unlock()
			return errors.Wrapf(errors.ErrPluginDependency, "plugin %s requires %s", name, dep)
		}
	}

	factory, ok := LookupFactory(name)
	if !ok {
		m.mu.Unlock()
		return errors.NewPluginLoad("no factory registered for %q", name)
	}
	m.mu.Unlock()

	instance := factory(name)
	if instance == nil {
		return errors.NewPluginLoad("factory for %q returned nil", name)
	}

	// The instance's own declarations are checked too: manifest and code
	// must agree on what has to be live before this plugin starts.
	if err := m.checkDependencies(name, instance.Dependencies()); err != nil {
		return err
	}

	var pluginCfg config.PluginConfig
	if m.settings != nil {
		pluginCfg = m.settings.GetPluginConfig(name)
		if c, ok := instance.(Configurable); ok {
			c.SetConfig(pluginCfg)
		}
	}

	if err := instance.ValidateConfig(pluginCfg); err != nil {
		return errors.Wrapf(errors.ErrPluginConfiguration, "plugin %s: %v", name, err)
	}

	// The plugin's own Initialize runs outside the registry lock: it may
	// block on network I/O for its full timeout. Panics are converted to
	// errors so nothing escapes the manager boundary.
	if err := safeInitialize(ctx, instance, host); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, live := m.plugins[name]; live {
		// Lost a race with a concurrent Initialize; discard ours.
		cleanupQuietly(ctx, instance, m.log)
		return nil
	}
	m.registerLocked(name, instance)
	m.states[name] = StateInitialized
	delete(m.failures, name)
	m.failed = removeName(m.failed, name)
	return nil
}

// checkDependencies verifies every named dependency is live. Self-references
// are ignored.
func (m *Manager) checkDependencies(name string, deps []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, dep := range deps {
		if dep == name {
			continue
		}
		if _, ok := m.plugins[dep]; !ok {
			return errors.Wrapf(errors.ErrPluginDependency, "plugin %s requires %s", name, dep)
		}
	}
	return nil
}

// registerLocked inserts an instance into the by-name map and every
// capability list it implements. Caller holds the write lock.
func (m *Manager) registerLocked(name string, p Plugin) {
	m.plugins[name] = p
	m.initialized = append(m.initialized, name)
	if wp, ok := p.(WebPlugin); ok {
		m.web = append(m.web, wp)
	}
	if ap, ok := p.(APIPlugin); ok {
		m.api = append(m.api, ap)
	}
	if pp, ok := p.(ProcessingPlugin); ok {
		m.processing = append(m.processing, pp)
	}
	if ip, ok := p.(IntegrationPlugin); ok {
		m.integration = append(m.integration, ip)
	}
}

// evictLocked removes a name from all five registry structures together.
// Caller holds the write lock.
func (m *Manager) evictLocked(name string) {
	delete(m.plugins, name)
	m.initialized = removeName(m.initialized, name)
	m.web = filterWeb(m.web, name)
	m.api = filterAPI(m.api, name)
	m.processing = filterProcessing(m.processing, name)
	m.integration = filterIntegration(m.integration, name)
}

// InitializeAll loads every discovered plugin and initializes them in
// dependency order (topological sort over declared dependencies, fail fast
// on cycles). Disabled plugins are skipped. Returns per-plugin success.
func (m *Manager) InitializeAll(ctx context.Context, host *HostContext) (map[string]bool, error) {
	results := make(map[string]bool)

	var loaded []string
	for _, name := range m.Discover() {
		if err := m.Load(name); err != nil {
			results[name] = false
			continue
		}
		m.mu.RLock()
		manifest := m.manifests[name]
		m.mu.RUnlock()

		enabled := manifest.IsEnabled()
		if enabled && m.settings != nil {
			enabled = m.settings.IsPluginEnabled(name)
		}
		if !enabled {
			m.log.Infow("Skipping disabled plugin", "name", name)
			continue
		}
		loaded = append(loaded, name)
	}

	order, err := sortByDependencies(loaded, func(name string) []string {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if mf, ok := m.manifests[name]; ok {
			return mf.Dependencies
		}
		return nil
	})
	if err != nil {
		for _, name := range loaded {
			results[name] = false
		}
		return results, err
	}

	for _, name := range order {
		results[name] = m.Initialize(ctx, name, host)
	}
	return results, nil
}

// Reload cleans up a plugin (cleanup errors are warnings, not failures),
// evicts it from every registry structure and the manifest cache, then
// re-runs a fresh load and initialize. Safe on a name that was never
// initialized.
func (m *Manager) Reload(ctx context.Context, name string, host *HostContext) bool {
	m.mu.Lock()
	instance, live := m.plugins[name]
	if live {
		m.states[name] = StateReloading
		m.evictLocked(name)
	}
	// Drop the cached manifest so the next load re-reads it from disk.
	delete(m.manifests, name)
	m.mu.Unlock()

	// Cleanup runs outside the lock: it may block on network I/O and must
	// not stall registry readers. The instance is already evicted.
	if live {
		cleanupQuietly(ctx, instance, m.log)
	}

	m.log.Infow("Reloading plugin", "name", name)
	return m.Initialize(ctx, name, host)
}

// ShutdownAll cleans up every live plugin, continuing past individual
// failures, then clears all registry structures. Terminal.
func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.Lock()
	instances := make(map[string]Plugin, len(m.plugins))
	for name, p := range m.plugins {
		instances[name] = p
	}
	m.mu.Unlock()

	// Shut down in reverse initialization order so dependents release
	// before their dependencies.
	names := make([]string, 0, len(instances))
	m.mu.RLock()
	for i := len(m.initialized) - 1; i >= 0; i-- {
		names = append(names, m.initialized[i])
	}
	m.mu.RUnlock()

	for _, name := range names {
		if err := safeCleanup(ctx, instances[name]); err != nil {
			m.log.Errorw("Error cleaning up plugin", "name", name, "error", err)
			continue
		}
		m.log.Infow("Cleaned up plugin", "name", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = make(map[string]Plugin)
	m.initialized = nil
	m.web = nil
	m.api = nil
	m.processing = nil
	m.integration = nil
	for name := range m.states {
		m.states[name] = StateShutdown
	}
}

// RegisterBlueprints mounts every web plugin's blueprint under
// /plugins/<name> and every API plugin's blueprint under
// /api/plugins/<name>. A nil blueprint is skipped silently by contract.
func (m *Manager) RegisterBlueprints(r chi.Router) {
	m.mu.RLock()
	web := make([]WebPlugin, len(m.web))
	copy(web, m.web)
	api := make([]APIPlugin, len(m.api))
	copy(api, m.api)
	m.mu.RUnlock()

	for _, p := range web {
		bp := p.Blueprint()
		if bp == nil {
			continue
		}
		name := p.Info().Name
		r.Mount("/plugins/"+name, bp)
		m.log.Infow("Registered web blueprint", "name", name)
	}
	for _, p := range api {
		bp := p.APIBlueprint()
		if bp == nil {
			continue
		}
		name := p.Info().Name
		r.Mount("/api/plugins/"+name, bp)
		m.log.Infow("Registered API blueprint", "name", name)
	}
}

// Get returns a live plugin instance by name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	return p, ok
}

// State returns the lifecycle state for a plugin name.
func (m *Manager) State(name string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[name]; ok {
		return s
	}
	return StateUndiscovered
}

// WebPlugins returns a copy of the web capability list.
func (m *Manager) WebPlugins() []WebPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WebPlugin, len(m.web))
	copy(out, m.web)
	return out
}

// APIPlugins returns a copy of the API capability list.
func (m *Manager) APIPlugins() []APIPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]APIPlugin, len(m.api))
	copy(out, m.api)
	return out
}

// ProcessingPlugins returns a copy of the processing capability list.
func (m *Manager) ProcessingPlugins() []ProcessingPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProcessingPlugin, len(m.processing))
	copy(out, m.processing)
	return out
}

// IntegrationPlugins returns a copy of the integration capability list.
func (m *Manager) IntegrationPlugins() []IntegrationPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]IntegrationPlugin, len(m.integration))
	copy(out, m.integration)
	return out
}

// Status summarizes the manager's view of every plugin.
type Status struct {
	TotalDiscovered int                     `json:"total_discovered"`
	Initialized     int                     `json:"initialized"`
	Failed          int                     `json:"failed"`
	Plugins         map[string]HealthStatus `json:"plugins"`
	States          map[string]State        `json:"states"`
	FailedPlugins   []string                `json:"failed_plugins"`
	Failures        map[string]string       `json:"failures"`
}

// Status reports counts, per-plugin health, lifecycle states, and failure
// reasons. This is the only place load/initialize failure detail surfaces;
// the boolean results carry none.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := make(map[string]HealthStatus, len(m.plugins))
	for name, p := range m.plugins {
		health[name] = p.Health()
	}
	states := make(map[string]State, len(m.states))
	for name, s := range m.states {
		states[name] = s
	}
	failed := make([]string, len(m.failed))
	copy(failed, m.failed)
	failures := make(map[string]string, len(m.failures))
	for name, reason := range m.failures {
		failures[name] = reason
	}

	return Status{
		TotalDiscovered: len(m.states),
		Initialized:     len(m.initialized),
		Failed:          len(failed),
		Plugins:         health,
		States:          states,
		FailedPlugins:   failed,
		Failures:        failures,
	}
}

// recordFailureLocked appends to the failed list (once per name) and stores
// the reason. Caller holds the write lock.
func (m *Manager) recordFailureLocked(name string, err error) {
	m.failures[name] = err.Error()
	for _, n := range m.failed {
		if n == name {
			return
		}
	}
	m.failed = append(m.failed, name)
}

// safeInitialize calls a plugin's Initialize with panic recovery so no
// plugin-side panic escapes the manager boundary.
func safeInitialize(ctx context.Context, p Plugin, host *HostContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("plugin panicked during initialize: %v", r)
		}
	}()
	return p.Initialize(ctx, host)
}

// safeCleanup calls a plugin's Cleanup with panic recovery.
func safeCleanup(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("plugin panicked during cleanup: %v", r)
		}
	}()
	return p.Cleanup(ctx)
}

func cleanupQuietly(ctx context.Context, p Plugin, log *zap.SugaredLogger) {
	if err := safeCleanup(ctx, p); err != nil {
		log.Warnw("Error cleaning up plugin", "name", p.Info().Name, "error", err)
	}
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func filterWeb(ps []WebPlugin, name string) []WebPlugin {
	out := ps[:0]
	for _, p := range ps {
		if p.Info().Name != name {
			out = append(out, p)
		}
	}
	return out
}

func filterAPI(ps []APIPlugin, name string) []APIPlugin {
	out := ps[:0]
	for _, p := range ps {
		if p.Info().Name != name {
			out = append(out, p)
		}
	}
	return out
}

func filterProcessing(ps []ProcessingPlugin, name string) []ProcessingPlugin {
	out := ps[:0]
	for _, p := range ps {
		if p.Info().Name != name {
			out = append(out, p)
		}
	}
	return out
}

func filterIntegration(ps []IntegrationPlugin, name string) []IntegrationPlugin {
	out := ps[:0]
	for _, p := range ps {
		if p.Info().Name != name {
			out = append(out, p)
		}
	}
	return out
}
