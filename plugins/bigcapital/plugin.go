package bigcapital

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
	"github.com/finbridge/finbridge/plugins/invoiceplane"
)

// Name is the plugin's registry name.
const Name = "bigcapital"

const version = "1.0.0"

func init() {
	plugin.RegisterFactory(Name, func(string) plugin.Plugin { return New() })
}

// SyncStats counts the outcome of one batch sync run.
type SyncStats struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Plugin pushes invoices, expenses, and document-derived records into a
// BigCapital instance. When InvoicePlane credentials are also configured,
// it can pull that system's invoices and mirror them across.
type Plugin struct {
	plugin.Base

	mu       sync.RWMutex
	client   *Client
	source   *invoiceplane.Client
	resolver *docmap.ContactResolver
	log      *zap.SugaredLogger

	// references already pushed in this process, keyed by source reference
	synced map[string]int
	stats  SyncStats
}

// New constructs an uninitialized BigCapital plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.NewBase(Name, version)}
}

// ValidateConfig requires api_url and api_token once the plugin is marked
// configured. The InvoicePlane source pair is optional but must be
// complete when present.
func (p *Plugin) ValidateConfig(cfg config.PluginConfig) error {
	if !cfg.Configured {
		return nil
	}
	if url, _ := cfg.Settings["api_url"].(string); url == "" {
		return errors.New("bigcapital: api_url is required")
	}
	if token, _ := cfg.Settings["api_token"].(string); token == "" {
		return errors.New("bigcapital: api_token is required")
	}
	srcURL, _ := cfg.Settings["invoiceplane_url"].(string)
	srcKey, _ := cfg.Settings["invoiceplane_api_key"].(string)
	if (srcURL == "") != (srcKey == "") {
		return errors.New("bigcapital: invoiceplane_url and invoiceplane_api_key must be set together")
	}
	return nil
}

// Initialize builds the API client, the contact resolver, and the optional
// InvoicePlane source client.
func (p *Plugin) Initialize(ctx context.Context, host *plugin.HostContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log = host.PluginLogger(Name)
	p.synced = make(map[string]int)
	p.stats = SyncStats{}

	if !p.Config.Configured {
		p.log.Warnw("credentials not configured, running degraded")
		p.client = nil
		p.source = nil
		p.resolver = nil
		return nil
	}

	p.client = NewClient(p.ConfigString("api_url", ""), p.ConfigString("api_token", ""))
	p.resolver = docmap.NewContactResolver(p.client, docmap.DefaultContactTTL)

	if srcURL := p.ConfigString("invoiceplane_url", ""); srcURL != "" {
		p.source = invoiceplane.NewClient(srcURL, p.ConfigString("invoiceplane_api_key", ""))
	} else {
		p.source = nil
	}

	p.log.Infow("initialized",
		"url", p.ConfigString("api_url", ""),
		"invoiceplane_source", p.source != nil)
	return nil
}

// Cleanup drops clients and the resolver cache.
func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.source = nil
	p.resolver = nil
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

func (p *Plugin) clients() (*Client, *invoiceplane.Client, *docmap.ContactResolver) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client, p.source, p.resolver
}

// Stats returns the cumulative sync counters since initialization.
func (p *Plugin) Stats() SyncStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// TestConnection checks the configured instance responds to an
// authenticated request.
func (p *Plugin) TestConnection(ctx context.Context) error {
	client, _, _ := p.clients()
	if client == nil {
		return errors.Mark(errors.New("bigcapital: not configured"), errors.ErrConfiguration)
	}
	return client.Ping(ctx)
}

// SyncData pushes one record into BigCapital. Supported types: "invoice",
// "expense", "contact", and "document" (synced as an expense derived from
// the document's extracted content).
func (p *Plugin) SyncData(ctx context.Context, payload plugin.SyncPayload) *plugin.SyncResult {
	client, _, resolver := p.clients()
	if client == nil {
		return plugin.Failure(errors.Mark(errors.New("not configured"), errors.ErrConfiguration))
	}

	result := p.syncOne(ctx, client, resolver, payload)
	p.mu.Lock()
	if result.Success {
		p.stats.Synced++
	} else {
		p.stats.Failed++
	}
	p.mu.Unlock()
	return result
}

func (p *Plugin) syncOne(ctx context.Context, client *Client, resolver *docmap.ContactResolver, payload plugin.SyncPayload) *plugin.SyncResult {
	switch payload.Type {
	case "invoice":
		var inv docmap.Invoice
		if err := plugin.DecodeRecord(payload.Record, &inv); err != nil {
			return plugin.Failure(err)
		}
		id, err := client.CreateInvoice(ctx, inv, "")
		if err != nil {
			p.log.Errorw("invoice sync failed", "reference", inv.Reference, "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(id), Action: "created"}

	case "expense":
		var exp docmap.Expense
		if err := plugin.DecodeRecord(payload.Record, &exp); err != nil {
			return plugin.Failure(err)
		}
		id, err := client.CreateExpense(ctx, exp)
		if err != nil {
			p.log.Errorw("expense sync failed", "reference", exp.Reference, "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(id), Action: "created"}

	case "contact":
		var contact docmap.Contact
		if err := plugin.DecodeRecord(payload.Record, &contact); err != nil {
			return plugin.Failure(err)
		}
		id, err := resolver.Resolve(ctx, contact)
		if err != nil {
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(id), Action: "found"}

	case "document":
		var doc docmap.Document
		if err := plugin.DecodeRecord(payload.Record, &doc); err != nil {
			return plugin.Failure(err)
		}
		exp := docmap.DocumentToExpense(doc)
		id, err := client.CreateExpense(ctx, exp)
		if err != nil {
			p.log.Errorw("document sync failed", "reference", exp.Reference, "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(id), Action: "created"}

	default:
		return plugin.Failure(errors.NewSync("unsupported record type %q", payload.Type))
	}
}

// SyncInvoicePlane pulls every invoice from the configured InvoicePlane
// source and mirrors it into BigCapital. Invoices already pushed in this
// process are skipped; per-invoice failures are counted and do not abort
// the batch.
func (p *Plugin) SyncInvoicePlane(ctx context.Context) (SyncStats, error) {
	client, source, resolver := p.clients()
	if client == nil {
		return SyncStats{}, errors.Mark(errors.New("bigcapital: not configured"), errors.ErrConfiguration)
	}
	if source == nil {
		return SyncStats{}, errors.Mark(errors.New("bigcapital: no invoiceplane source configured"), errors.ErrConfiguration)
	}

	invoices, err := source.Invoices(ctx)
	if err != nil {
		return SyncStats{}, errors.Wrap(err, "pull invoiceplane invoices")
	}

	var run SyncStats
	for _, src := range invoices {
		reference := fmt.Sprintf("InvoicePlane-%d", src.ID)

		p.mu.RLock()
		_, done := p.synced[reference]
		p.mu.RUnlock()
		if done {
			run.Skipped++
			continue
		}

		customerID, err := resolver.Resolve(ctx, SourceContact(src))
		if err != nil {
			p.log.Errorw("contact resolution failed", "invoice", src.Number, "error", err)
			run.Failed++
			continue
		}
		inv, err := FromInvoicePlane(src, customerID)
		if err != nil {
			p.log.Errorw("invoice mapping failed", "invoice", src.Number, "error", err)
			run.Failed++
			continue
		}
		id, err := client.CreateInvoice(ctx, inv, DeliveryStatus(src.StatusID))
		if err != nil {
			p.log.Errorw("invoice push failed", "invoice", src.Number, "error", err)
			run.Failed++
			continue
		}

		p.mu.Lock()
		p.synced[reference] = id
		p.mu.Unlock()
		run.Synced++
	}

	p.mu.Lock()
	p.stats.Synced += run.Synced
	p.stats.Skipped += run.Skipped
	p.stats.Failed += run.Failed
	p.mu.Unlock()

	p.log.Infow("invoiceplane sync complete",
		"synced", run.Synced, "skipped", run.Skipped, "failed", run.Failed)
	return run, nil
}

// Blueprint serves a minimal status dashboard under /plugins/bigcapital.
func (p *Plugin) Blueprint() chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		h := p.Health()
		stats := p.Stats()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>BigCapital</h1><p>status: %s</p><p>synced: %d, skipped: %d, failed: %d</p>",
			h.Status, stats.Synced, stats.Skipped, stats.Failed)
	})
	return r
}

// APIBlueprint serves sync controls under /api/plugins/bigcapital.
func (p *Plugin) APIBlueprint() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Stats())
	})

	r.Get("/customers", func(w http.ResponseWriter, req *http.Request) {
		client, _, _ := p.clients()
		if client == nil {
			http.Error(w, "not configured", http.StatusServiceUnavailable)
			return
		}
		customers, err := client.Customers(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": customers})
	})

	r.Post("/sync/invoiceplane", func(w http.ResponseWriter, req *http.Request) {
		stats, err := p.SyncInvoicePlane(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return r
}
