package invoiceninja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

// Name is the plugin's registry name.
const Name = "invoiceninja"

const version = "1.0.0"

func init() {
	plugin.RegisterFactory(Name, func(string) plugin.Plugin { return New() })
}

// Plugin exposes an Invoice Ninja instance to the host.
type Plugin struct {
	plugin.Base

	mu     sync.RWMutex
	client *Client
	log    *zap.SugaredLogger
}

// New constructs an uninitialized Invoice Ninja plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.NewBase(Name, version)}
}

// ValidateConfig requires url and api_token once the plugin is marked
// configured.
func (p *Plugin) ValidateConfig(cfg config.PluginConfig) error {
	if !cfg.Configured {
		return nil
	}
	if url, _ := cfg.Settings["url"].(string); url == "" {
		return errors.New("invoiceninja: url is required")
	}
	if token, _ := cfg.Settings["api_token"].(string); token == "" {
		return errors.New("invoiceninja: api_token is required")
	}
	return nil
}

// Initialize builds the API client when credentials are configured.
func (p *Plugin) Initialize(ctx context.Context, host *plugin.HostContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log = host.PluginLogger(Name)
	if !p.Config.Configured {
		p.log.Warnw("credentials not configured, running degraded")
		p.client = nil
		return nil
	}
	p.client = NewClient(p.ConfigString("url", ""), p.ConfigString("api_token", ""))
	p.log.Infow("initialized", "url", p.ConfigString("url", ""))
	return nil
}

// Cleanup drops the client.
func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	return nil
}

// Health reports degraded while credentials are missing.
func (p *Plugin) Health() plugin.HealthStatus {
	h := p.Base.Health()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h.Status == plugin.StatusHealthy && p.client == nil {
		h.Status = plugin.StatusDegraded
		h.Message = "api credentials not configured"
	}
	return h
}

// Client returns the live API client, nil while degraded.
func (p *Plugin) Client() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// TestConnection checks the configured instance responds to an
// authenticated request.
func (p *Plugin) TestConnection(ctx context.Context) error {
	client := p.Client()
	if client == nil {
		return errors.Mark(errors.New("invoiceninja: not configured"), errors.ErrConfiguration)
	}
	return client.Ping(ctx)
}

// SyncData accepts "invoice" and "contact" records.
func (p *Plugin) SyncData(ctx context.Context, payload plugin.SyncPayload) *plugin.SyncResult {
	client := p.Client()
	if client == nil {
		return plugin.Failure(errors.Mark(errors.New("not configured"), errors.ErrConfiguration))
	}

	switch payload.Type {
	case "invoice":
		var inv Invoice
		if err := plugin.DecodeRecord(payload.Record, &inv); err != nil {
			return plugin.Failure(err)
		}
		created, err := client.CreateInvoice(ctx, inv)
		if err != nil {
			p.log.Errorw("invoice sync failed", "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: created.ID, Action: "created"}
	case "contact":
		var record ClientRecord
		if err := plugin.DecodeRecord(payload.Record, &record); err != nil {
			return plugin.Failure(err)
		}
		created, err := client.CreateClient(ctx, record)
		if err != nil {
			p.log.Errorw("contact sync failed", "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: created.ID, Action: "created"}
	default:
		return plugin.Failure(errors.NewSync("unsupported record type %q", payload.Type))
	}
}

// Blueprint serves a minimal status dashboard under /plugins/invoiceninja.
func (p *Plugin) Blueprint() chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		h := p.Health()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Invoice Ninja</h1><p>status: %s</p>", h.Status)
		if h.Message != "" {
			fmt.Fprintf(w, "<p>%s</p>", h.Message)
		}
	})
	return r
}

// APIBlueprint serves read-only listings under /api/plugins/invoiceninja.
func (p *Plugin) APIBlueprint() chi.Router {
	r := chi.NewRouter()
	r.Get("/invoices", func(w http.ResponseWriter, req *http.Request) {
		client := p.Client()
		if client == nil {
			http.Error(w, "not configured", http.StatusServiceUnavailable)
			return
		}
		invoices, err := client.Invoices(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": invoices})
	})
	r.Get("/clients", func(w http.ResponseWriter, req *http.Request) {
		client := p.Client()
		if client == nil {
			http.Error(w, "not configured", http.StatusServiceUnavailable)
			return
		}
		records, err := client.Clients(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": records})
	})
	return r
}
