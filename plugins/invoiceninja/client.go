// Package invoiceninja integrates the Invoice Ninja invoicing system.
package invoiceninja

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/internal/httpclient"
)

// ClientRecord is one Invoice Ninja client. Invoice Ninja v5 uses opaque
// string ids.
type ClientRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	Contacts []Contact       `json:"contacts,omitempty"`
}

// Contact is one person attached to an Invoice Ninja client.
type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Invoice is one Invoice Ninja invoice.
type Invoice struct {
	ID        string          `json:"id,omitempty"`
	ClientID  string          `json:"client_id"`
	Number    string          `json:"number,omitempty"`
	Date      string          `json:"date,omitempty"`
	DueDate   string          `json:"due_date,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	StatusID  string          `json:"status_id,omitempty"`
	LineItems []LineItem      `json:"line_items,omitempty"`
}

// LineItem is one line on an Invoice Ninja invoice.
type LineItem struct {
	ProductKey string          `json:"product_key,omitempty"`
	Notes      string          `json:"notes"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
}

// Client talks to one Invoice Ninja instance. Authentication is the API
// token in the X-Ninja-Token header; collection responses arrive in a
// {"data": [...]} envelope.
type Client struct {
	rest *httpclient.Client
}

// NewClient builds a client for the Invoice Ninja instance at baseURL.
func NewClient(baseURL, token string, opts ...httpclient.Option) *Client {
	return &Client{
		rest: httpclient.New(baseURL, httpclient.HeaderAuth{Header: "X-Ninja-Token", Value: token}, opts...),
	}
}

// Ping verifies the instance is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Data []ClientRecord `json:"data"`
	}
	query := url.Values{"per_page": {"1"}}
	if err := c.rest.Get(ctx, "/api/v1/clients", query, &resp); err != nil {
		return errors.Wrap(err, "invoiceninja ping")
	}
	return nil
}

// Clients returns the instance's client records.
func (c *Client) Clients(ctx context.Context) ([]ClientRecord, error) {
	var resp struct {
		Data []ClientRecord `json:"data"`
	}
	if err := c.rest.Get(ctx, "/api/v1/clients", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list clients")
	}
	return resp.Data, nil
}

// Invoices returns the instance's invoices.
func (c *Client) Invoices(ctx context.Context) ([]Invoice, error) {
	var resp struct {
		Data []Invoice `json:"data"`
	}
	if err := c.rest.Get(ctx, "/api/v1/invoices", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}
	return resp.Data, nil
}

// CreateClient creates a client record and returns it with its assigned id.
func (c *Client) CreateClient(ctx context.Context, record ClientRecord) (*ClientRecord, error) {
	var resp struct {
		Data ClientRecord `json:"data"`
	}
	if err := c.rest.Post(ctx, "/api/v1/clients", record, &resp); err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	return &resp.Data, nil
}

// CreateInvoice creates an invoice and returns it with its assigned id.
func (c *Client) CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	var resp struct {
		Data Invoice `json:"data"`
	}
	if err := c.rest.Post(ctx, "/api/v1/invoices", inv, &resp); err != nil {
		return nil, errors.Wrap(err, "create invoice")
	}
	return &resp.Data, nil
}
