package bigcapital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
)

// fakeBigCapital serves just enough of the API surface for client tests.
func fakeBigCapital(t *testing.T, customers []Customer) (*httptest.Server, *[]string) {
	t.Helper()
	var created []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v1/customers":
			if r.Method == http.MethodPost {
				created = append(created, "customer")
				json.NewEncoder(w).Encode(createResponse{ID: 100})
				return
			}
			json.NewEncoder(w).Encode(customerList{Data: customers})
		case "/api/v1/sale-invoices":
			created = append(created, "invoice")
			json.NewEncoder(w).Encode(createResponse{ID: 200})
		case "/api/v1/expenses":
			created = append(created, "expense")
			json.NewEncoder(w).Encode(createResponse{ID: 300})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &created
}

func TestSearchContactsExactEmail(t *testing.T) {
	srv, _ := fakeBigCapital(t, []Customer{
		{ID: 1, DisplayName: "Acme Corp", Email: "billing@acme.test"},
		{ID: 2, DisplayName: "Other Co", Email: "other@test"},
	})
	c := NewClient(srv.URL, "test-token")

	found, err := c.SearchContacts(context.Background(), "Billing@Acme.Test")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1, found[0].ID)
}

func TestSearchContactsNameSubstringAfterExact(t *testing.T) {
	srv, _ := fakeBigCapital(t, []Customer{
		{ID: 1, DisplayName: "Acme"},
		{ID: 2, DisplayName: "Acme Corp Holdings"},
	})
	c := NewClient(srv.URL, "test-token")

	found, err := c.SearchContacts(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 1, found[0].ID)
	assert.Equal(t, 2, found[1].ID)
}

func TestCreateContact(t *testing.T) {
	srv, created := fakeBigCapital(t, nil)
	c := NewClient(srv.URL, "test-token")

	contact, err := c.CreateContact(context.Background(), docmap.Contact{DisplayName: "New Co", Email: "n@c.test"})
	require.NoError(t, err)
	assert.Equal(t, 100, contact.ID)
	assert.Equal(t, []string{"customer"}, *created)
}

func TestCreateInvoiceRequiresCustomer(t *testing.T) {
	srv, created := fakeBigCapital(t, nil)
	c := NewClient(srv.URL, "test-token")

	_, err := c.CreateInvoice(context.Background(), docmap.Invoice{Reference: "X-1"}, "draft")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSync))
	assert.Empty(t, *created)
}

func TestCreateExpense(t *testing.T) {
	srv, created := fakeBigCapital(t, nil)
	c := NewClient(srv.URL, "test-token")

	id, err := c.CreateExpense(context.Background(), docmap.Expense{Reference: "Paperless-9"})
	require.NoError(t, err)
	assert.Equal(t, 300, id)
	assert.Equal(t, []string{"expense"}, *created)
}

func TestBadTokenSurfacesConfigurationError(t *testing.T) {
	srv, _ := fakeBigCapital(t, nil)
	c := NewClient(srv.URL, "wrong")

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
