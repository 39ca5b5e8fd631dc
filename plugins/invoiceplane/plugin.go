package invoiceplane

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

// Name is the plugin's registry name.
const Name = "invoiceplane"

const version = "1.0.0"

func init() {
	plugin.RegisterFactory(Name, func(string) plugin.Plugin { return New() })
}

// Plugin exposes an InvoicePlane instance to the host.
type Plugin struct {
	plugin.Base

	mu     sync.RWMutex
	client *Client
	log    *zap.SugaredLogger
}

// New constructs an uninitialized InvoicePlane plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.NewBase(Name, version)}
}

// ValidateConfig requires url and api_key once the plugin is marked
// configured. An unconfigured plugin passes and later boots degraded.
func (p *Plugin) ValidateConfig(cfg config.PluginConfig) error {
	if !cfg.Configured {
		return nil
	}
	if url, _ := cfg.Settings["url"].(string); url == "" {
		return errors.New("invoiceplane: url is required")
	}
	if key, _ := cfg.Settings["api_key"].(string); key == "" {
		return errors.New("invoiceplane: api_key is required")
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
	p.client = NewClient(p.ConfigString("url", ""), p.ConfigString("api_key", ""))
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

// Client returns the live API client, nil while degraded. Other plugins
// use this to pull invoices for cross-system sync.
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
		return errors.Mark(errors.New("invoiceplane: not configured"), errors.ErrConfiguration)
	}
	return client.Ping(ctx)
}

// SyncData accepts "invoice" records and creates them as drafts in the
// InvoicePlane instance.
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
		id, err := client.CreateInvoice(ctx, inv)
		if err != nil {
			p.log.Errorw("invoice sync failed", "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(id), Action: "created"}
	default:
		return plugin.Failure(errors.NewSync("unsupported record type %q", payload.Type))
	}
}

// APIBlueprint serves read-only invoice listings under /api/plugins/invoiceplane.
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
		json.NewEncoder(w).Encode(map[string]interface{}{"invoices": invoices})
	})
	return r
}
