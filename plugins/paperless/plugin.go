package paperless

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

// Name is the plugin's registry name.
const Name = "paperless"

const version = "1.0.0"

func init() {
	plugin.RegisterFactory(Name, func(string) plugin.Plugin { return New() })
}

// Plugin exposes a Paperless-NGX instance to the host. It participates in
// the processing pipeline by extracting financial fields from OCR text,
// and in sync by resolving document references against the instance.
type Plugin struct {
	plugin.Base

	mu     sync.RWMutex
	client *Client
	log    *zap.SugaredLogger
}

// New constructs an uninitialized Paperless plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.NewBase(Name, version)}
}

// ValidateConfig requires url and api_token once the plugin is marked
// configured. Extraction works without credentials; only the API surface
// degrades.
func (p *Plugin) ValidateConfig(cfg config.PluginConfig) error {
	if !cfg.Configured {
		return nil
	}
	if url, _ := cfg.Settings["url"].(string); url == "" {
		return errors.New("paperless: url is required")
	}
	if token, _ := cfg.Settings["api_token"].(string); token == "" {
		return errors.New("paperless: api_token is required")
	}
	return nil
}

// Initialize builds the API client when credentials are configured.
func (p *Plugin) Initialize(ctx context.Context, host *plugin.HostContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log = host.PluginLogger(Name)
	if !p.Config.Configured {
		p.log.Warnw("credentials not configured, extraction only")
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

// Health reports degraded while credentials are missing. The plugin stays
// useful for extraction either way.
func (p *Plugin) Health() plugin.HealthStatus {
	h := p.Base.Health()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h.Status == plugin.StatusHealthy && p.client == nil {
		h.Status = plugin.StatusDegraded
		h.Message = "api credentials not configured, extraction only"
	}
	return h
}

// Client returns the live API client, nil while degraded.
func (p *Plugin) Client() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// SupportedFormats lists the extensions the processing pipeline may hand
// this plugin.
func (p *Plugin) SupportedFormats() []string {
	return []string{"pdf", "png", "jpg", "jpeg", "tiff", "txt"}
}

// ProcessDocument extracts financial fields from a document's OCR text.
// The text comes from meta["content"] when the caller already has it
// (Paperless runs OCR server-side); plain-text files are read from disk.
func (p *Plugin) ProcessDocument(ctx context.Context, path string, meta map[string]interface{}) (*plugin.ProcessResult, error) {
	content, _ := meta["content"].(string)
	if content == "" && strings.EqualFold(filepath.Ext(path), ".txt") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read %s", path), errors.ErrProcessing)
		}
		content = string(raw)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.Mark(errors.Newf("no text content for %s", filepath.Base(path)), errors.ErrOCR)
	}

	ext := docmap.Extract(content)
	return &plugin.ProcessResult{
		Success: true,
		Plugin:  Name,
		Fields: map[string]interface{}{
			"amounts":         ext.Amounts,
			"dates":           ext.Dates,
			"invoice_numbers": ext.InvoiceNumbers,
			"contact":         ext.Contact,
			"document_type":   ClassifyText(content),
		},
	}, nil
}

// TestConnection checks the configured instance responds to an
// authenticated request.
func (p *Plugin) TestConnection(ctx context.Context) error {
	client := p.Client()
	if client == nil {
		return errors.Mark(errors.New("paperless: not configured"), errors.ErrConfiguration)
	}
	return client.Ping(ctx)
}

// SyncData accepts "document" records and verifies the referenced document
// exists in the instance, reporting its id back.
func (p *Plugin) SyncData(ctx context.Context, payload plugin.SyncPayload) *plugin.SyncResult {
	client := p.Client()
	if client == nil {
		return plugin.Failure(errors.Mark(errors.New("not configured"), errors.ErrConfiguration))
	}

	switch payload.Type {
	case "document":
		var ref struct {
			ID int `json:"id"`
		}
		if err := plugin.DecodeRecord(payload.Record, &ref); err != nil {
			return plugin.Failure(err)
		}
		doc, err := client.Document(ctx, ref.ID)
		if err != nil {
			p.log.Errorw("document lookup failed", "id", ref.ID, "error", err)
			return plugin.Failure(err)
		}
		return &plugin.SyncResult{Success: true, ExternalID: strconv.Itoa(doc.ID), Action: "found"}
	default:
		return plugin.Failure(errors.NewSync("unsupported record type %q", payload.Type))
	}
}
