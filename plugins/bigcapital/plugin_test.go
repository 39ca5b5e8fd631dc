package bigcapital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/plugin"
	"github.com/finbridge/finbridge/plugins/invoiceplane"
)

func configuredPlugin(t *testing.T, settings map[string]interface{}) *Plugin {
	t.Helper()
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true, Configured: true, Settings: settings})
	require.NoError(t, p.ValidateConfig(p.Config))
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))
	return p
}

func TestValidateConfigRequiresCredentials(t *testing.T) {
	p := New()
	err := p.ValidateConfig(config.PluginConfig{Configured: true, Settings: map[string]interface{}{}})
	require.Error(t, err)

	// unconfigured passes and boots degraded
	require.NoError(t, p.ValidateConfig(config.PluginConfig{Configured: false}))
}

func TestValidateConfigSourcePairMustBeComplete(t *testing.T) {
	p := New()
	err := p.ValidateConfig(config.PluginConfig{Configured: true, Settings: map[string]interface{}{
		"api_url":          "http://bc.test",
		"api_token":        "tok",
		"invoiceplane_url": "http://ip.test",
	}})
	require.Error(t, err)
}

func TestDegradedWithoutCredentials(t *testing.T) {
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true, Configured: false})
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))

	h := p.Health()
	assert.Equal(t, plugin.StatusDegraded, h.Status)

	require.Error(t, p.TestConnection(context.Background()))

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "invoice"})
	assert.False(t, result.Success)
	assert.Equal(t, "configuration", result.ErrorType)
}

func TestSyncDataExpense(t *testing.T) {
	srv, created := fakeBigCapital(t, nil)
	p := configuredPlugin(t, map[string]interface{}{
		"api_url": srv.URL, "api_token": "test-token",
	})

	record, err := plugin.EncodeRecord(map[string]interface{}{
		"payment_date": "2024-01-15T00:00:00Z",
		"amount":       "123.45",
		"description":  "Office supplies",
		"reference":    "Paperless-42",
	})
	require.NoError(t, err)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "expense", Record: record})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "300", result.ExternalID)
	assert.Equal(t, "created", result.Action)
	assert.Equal(t, []string{"expense"}, *created)
	assert.Equal(t, 1, p.Stats().Synced)
}

func TestSyncDataUnsupportedType(t *testing.T) {
	srv, _ := fakeBigCapital(t, nil)
	p := configuredPlugin(t, map[string]interface{}{
		"api_url": srv.URL, "api_token": "test-token",
	})

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "timesheet"})
	assert.False(t, result.Success)
	assert.Equal(t, "sync", result.ErrorType)
	assert.Equal(t, 1, p.Stats().Failed)
}

func fakeInvoicePlane(t *testing.T, invoices []invoiceplane.Invoice) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "ip-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"invoices": invoices})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncInvoicePlane(t *testing.T) {
	destination, created := fakeBigCapital(t, []Customer{
		{ID: 9, DisplayName: "Known Client", Email: "known@client.test"},
	})
	source := fakeInvoicePlane(t, []invoiceplane.Invoice{
		{
			ID: 1, Number: "IP-1", StatusID: 2, ClientName: "Known Client",
			ClientEmail: "known@client.test", Total: decimal.NewFromInt(100),
		},
		{
			ID: 2, Number: "IP-2", StatusID: 4, ClientName: "Brand New Client",
			Total: decimal.NewFromInt(50),
		},
	})

	p := configuredPlugin(t, map[string]interface{}{
		"api_url":              destination.URL,
		"api_token":            "test-token",
		"invoiceplane_url":     source.URL,
		"invoiceplane_api_key": "ip-key",
	})

	stats, err := p.SyncInvoicePlane(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Synced)
	assert.Equal(t, 0, stats.Failed)

	// one customer created for the unknown client, two invoices pushed
	assert.Equal(t, []string{"invoice", "customer", "invoice"}, *created)

	// second run skips everything already pushed
	stats, err = p.SyncInvoicePlane(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Synced)
	assert.Equal(t, 2, stats.Skipped)
}

func TestSyncInvoicePlaneWithoutSource(t *testing.T) {
	destination, _ := fakeBigCapital(t, nil)
	p := configuredPlugin(t, map[string]interface{}{
		"api_url": destination.URL, "api_token": "test-token",
	})

	_, err := p.SyncInvoicePlane(context.Background())
	require.Error(t, err)
}

func TestAPIBlueprintStats(t *testing.T) {
	destination, _ := fakeBigCapital(t, nil)
	p := configuredPlugin(t, map[string]interface{}{
		"api_url": destination.URL, "api_token": "test-token",
	})

	rec := httptest.NewRecorder()
	p.APIBlueprint().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats SyncStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Synced)
}
