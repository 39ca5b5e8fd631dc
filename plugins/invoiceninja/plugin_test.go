package invoiceninja

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

func fakeInstance(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Ninja-Token") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/v1/clients" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": ClientRecord{ID: "abc123", Name: "New Co"},
			})
		case r.URL.Path == "/api/v1/clients":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []ClientRecord{{ID: "c1", Name: "Acme"}},
			})
		case r.URL.Path == "/api/v1/invoices" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": Invoice{ID: "inv9", ClientID: "c1"},
			})
		case r.URL.Path == "/api/v1/invoices":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []Invoice{{ID: "inv1", ClientID: "c1", Amount: decimal.NewFromInt(10)}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func initialized(t *testing.T, url string) *Plugin {
	t.Helper()
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true, Configured: true, Settings: map[string]interface{}{
		"url": url, "api_token": "token",
	}})
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))
	return p
}

func TestValidateConfig(t *testing.T) {
	p := New()
	assert.Error(t, p.ValidateConfig(config.PluginConfig{Configured: true}))
	assert.NoError(t, p.ValidateConfig(config.PluginConfig{Configured: false}))
}

func TestTestConnection(t *testing.T) {
	srv := fakeInstance(t)
	p := initialized(t, srv.URL)
	assert.NoError(t, p.TestConnection(context.Background()))
}

func TestSyncDataInvoice(t *testing.T) {
	srv := fakeInstance(t)
	p := initialized(t, srv.URL)

	record, err := plugin.EncodeRecord(Invoice{ClientID: "c1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "invoice", Record: record})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "inv9", result.ExternalID)
	assert.Equal(t, "created", result.Action)
}

func TestSyncDataContact(t *testing.T) {
	srv := fakeInstance(t)
	p := initialized(t, srv.URL)

	record, err := plugin.EncodeRecord(ClientRecord{Name: "New Co"})
	require.NoError(t, err)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "contact", Record: record})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "abc123", result.ExternalID)
}

func TestSyncDataUnknownType(t *testing.T) {
	srv := fakeInstance(t)
	p := initialized(t, srv.URL)

	result := p.SyncData(context.Background(), plugin.SyncPayload{Type: "quote"})
	assert.False(t, result.Success)
	assert.Equal(t, "sync", result.ErrorType)
}

func TestDegradedWithoutConfig(t *testing.T) {
	p := New()
	p.SetConfig(config.PluginConfig{Enabled: true})
	require.NoError(t, p.Initialize(context.Background(), &plugin.HostContext{}))
	assert.Equal(t, plugin.StatusDegraded, p.Health().Status)
}

func TestAPIBlueprint(t *testing.T) {
	srv := fakeInstance(t)
	p := initialized(t, srv.URL)

	rec := httptest.NewRecorder()
	p.APIBlueprint().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")
}
