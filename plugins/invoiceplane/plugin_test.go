package invoiceplane

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
)

func fakeInstance(t *testing.T, invoices []Invoice) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"invoices": []Invoice{{ID: 77}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"invoices": invoices})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func initialized(t *testing.T, url string) *Plugin {
	t.Helper()
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true, Configured: true, Settings: map[string]interface{}{
		"url": url, "api_key": "key",
	}})
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))
	return p
}

func TestValidateConfig(t *testing.T) {
	p := New()
	assert.Error(t, p.ValidateConfig(config.PluginConfig{Configured: true}))
	assert.NoError(t, p.ValidateConfig(config.PluginConfig{Configured: false}))
	assert.NoError(t, p.ValidateConfig(config.PluginConfig{Configured: true, Settings: map[string]interface{}{
		"url": "http://ip.test", "api_key": "key",
	}}))
}

func TestClientInvoices(t *testing.T) {
	srv := fakeInstance(t, []Invoice{
		{ID: 1, Number: "IP-1", Total: decimal.NewFromInt(10)},
		{ID: 2, Number: "IP-2", Total: decimal.NewFromInt(20)},
	})
	c := NewClient(srv.URL, "key")

	invoices, err := c.Invoices(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "IP-1", invoices[0].Number)
	assert.True(t, invoices[1].Total.Equal(decimal.NewFromInt(20)))
}

func TestTestConnection(t *testing.T) {
	srv := fakeInstance(t, nil)
	p := initialized(t, srv.URL)
	assert.NoError(t, p.TestConnection(context.Background()))
}

func TestSyncDataCreatesInvoice(t *testing.T) {
	srv := fakeInstance(t, nil)
	p := initialized(t, srv.URL)

	record, err := plugin.EncodeRecord(Invoice{Number: "IP-9", ClientID: 4})
	require.NoError(t, err)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "invoice", Record: record})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "77", result.ExternalID)
}

func TestSyncDataRejectsUnknownType(t *testing.T) {
	srv := fakeInstance(t, nil)
	p := initialized(t, srv.URL)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "payment"})
	assert.False(t, result.Success)
	assert.Equal(t, "sync", result.ErrorType)
}

func TestDegradedWithoutConfig(t *testing.T) {
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true})
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))

	assert.Equal(t, plugin.StatusDegraded, p.Health().Status)
	assert.Error(t, p.TestConnection(context.Background()))
}

func TestAPIBlueprintListsInvoices(t *testing.T) {
	srv := fakeInstance(t, []Invoice{{ID: 1, Number: "IP-1"}})
	p := initialized(t, srv.URL)

	rec := httptest.NewRecorder()
	p.APIBlueprint().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "IP-1")
}
