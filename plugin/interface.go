// Package plugin provides the plugin architecture for finbridge integrations.
//
// A plugin wraps one external business system (accounting, invoicing,
// document management) or one processing capability. Every plugin implements
// the base Plugin contract; capabilities beyond that are optional interfaces
// detected by type assertion:
//
//   - WebPlugin: serves a dashboard router mounted at /plugins/<name>
//   - APIPlugin: serves a JSON router mounted at /api/plugins/<name>
//   - ProcessingPlugin: participates in the document processing pipeline
//   - IntegrationPlugin: syncs records with a third-party REST API
//
// The Manager owns the full lifecycle: discovery of plugin.toml manifests on
// disk, construction through registered factories, dependency-ordered
// initialization, capability categorization, blueprint registration, reload,
// and shutdown.
package plugin

import (
	"context"
	"database/sql"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
)

// Info identifies a plugin instance.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
}

// Plugin is the base contract every plugin implements.
type Plugin interface {
	// Info returns the plugin's identity
	Info() Info

	// Dependencies returns the names of plugins that must be initialized
	// before this one
	Dependencies() []string

	// ValidateConfig checks a configuration without side effects. It runs
	// before Initialize so misconfiguration fails with a clear error.
	ValidateConfig(cfg config.PluginConfig) error

	// Initialize prepares the plugin with the host context. It must be safe
	// to call again after Cleanup (reload does exactly that). Recoverable
	// misconfiguration, such as absent credentials, is not an error: the
	// plugin boots degraded and reports it through Health.
	Initialize(ctx context.Context, host *HostContext) error

	// Cleanup releases held connections and sessions. Called before an
	// instance is discarded.
	Cleanup(ctx context.Context) error

	// Health returns the plugin's health status
	Health() HealthStatus
}

// Configurable is an optional interface for plugins that accept injected
// configuration. The manager calls SetConfig with the plugin's side-store
// entry before ValidateConfig.
type Configurable interface {
	SetConfig(cfg config.PluginConfig)
}

// WebPlugin is implemented by plugins that serve a web dashboard.
// A nil router means the plugin has nothing to mount; that is not an error.
type WebPlugin interface {
	Plugin
	Blueprint() chi.Router
}

// APIPlugin is implemented by plugins that serve JSON API routes.
type APIPlugin interface {
	Plugin
	APIBlueprint() chi.Router
}

// ProcessingPlugin is implemented by plugins that process uploaded documents.
type ProcessingPlugin interface {
	Plugin

	// ProcessDocument runs the plugin against one document file
	ProcessDocument(ctx context.Context, path string, meta map[string]interface{}) (*ProcessResult, error)

	// SupportedFormats returns handled file extensions (lower-case, no dot).
	// Empty means every format.
	SupportedFormats() []string
}

// IntegrationPlugin is implemented by plugins that talk to a third-party API.
type IntegrationPlugin interface {
	Plugin

	// TestConnection verifies the external service is reachable with the
	// configured credentials
	TestConnection(ctx context.Context) error

	// SyncData pushes one record to the external system. Integration
	// failures are reported inside the result, never raised to the caller.
	SyncData(ctx context.Context, payload SyncPayload) *SyncResult
}

// HostContext is the transient dependency bundle passed into Initialize.
// Plugins take what they need from it; the host does not keep it alive
// beyond the initialize call.
type HostContext struct {
	Settings *config.Settings
	DB       *sql.DB
	Logger   *zap.SugaredLogger
}

// PluginLogger returns a sub-logger named for the plugin, falling back to a
// no-op logger when the host did not provide one.
func (h *HostContext) PluginLogger(name string) *zap.SugaredLogger {
	if h == nil || h.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return h.Logger.Named(name)
}

// Health status vocabulary.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusDisabled = "disabled"
)

// HealthStatus describes one plugin's health.
type HealthStatus struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SyncPayload is the input to IntegrationPlugin.SyncData.
type SyncPayload struct {
	// Type selects the record kind: "invoice", "expense", "contact",
	// "document"
	Type string `json:"type"`

	// Record is the source-system record being synced
	Record map[string]interface{} `json:"record"`
}

// SyncResult is the outcome of one sync call. No retry state is retained
// across calls; callers re-invoke on failure.
type SyncResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Action     string `json:"action,omitempty"` // "created" or "found"
	Error      string `json:"error,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
}

// ProcessResult is one processing plugin's output for one document.
type ProcessResult struct {
	Success bool                   `json:"success"`
	Plugin  string                 `json:"plugin"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// State represents where a plugin is in its lifecycle.
type State string

const (
	// StateUndiscovered means the name is unknown to the manager
	StateUndiscovered State = "undiscovered"
	// StateDiscovered means a manifest was found on disk
	StateDiscovered State = "discovered"
	// StateLoaded means the manifest parsed and a factory matched it
	StateLoaded State = "loaded"
	// StateInitialized means the instance is live and registered
	StateInitialized State = "initialized"
	// StateLoadFailed means manifest parsing or factory lookup failed
	StateLoadFailed State = "load_failed"
	// StateInitFailed means construction, validation, dependency check, or
	// the plugin's own Initialize failed
	StateInitFailed State = "init_failed"
	// StateReloading means a reload is in progress
	StateReloading State = "reloading"
	// StateShutdown is terminal
	StateShutdown State = "shutdown"
)
