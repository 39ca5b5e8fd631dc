// Package invoiceplane integrates the InvoicePlane invoicing system.
// InvoicePlane is usually the source of truth for invoices; other
// integrations pull from it through this package's client.
package invoiceplane

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/internal/httpclient"
)

// Invoice is one InvoicePlane invoice as returned by its API.
type Invoice struct {
	ID          int             `json:"invoice_id"`
	Number      string          `json:"invoice_number"`
	DateCreated string          `json:"invoice_date_created"`
	DateDue     string          `json:"invoice_date_due"`
	StatusID    int             `json:"invoice_status_id"`
	Total       decimal.Decimal `json:"invoice_total"`
	Balance     decimal.Decimal `json:"invoice_balance"`
	ClientID    int             `json:"client_id"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	Items       []Item          `json:"items,omitempty"`
}

// Item is one line on an InvoicePlane invoice.
type Item struct {
	Name        string          `json:"item_name"`
	Description string          `json:"item_description"`
	Quantity    decimal.Decimal `json:"item_quantity"`
	Price       decimal.Decimal `json:"item_price"`
}

// ClientRecord is one InvoicePlane client.
type ClientRecord struct {
	ID      int    `json:"client_id"`
	Name    string `json:"client_name"`
	Surname string `json:"client_surname"`
	Email   string `json:"client_email"`
	Phone   string `json:"client_phone"`
}

// Client talks to one InvoicePlane instance. Authentication is the
// instance's API key in the X-API-KEY header.
type Client struct {
	rest *httpclient.Client
}

// NewClient builds a client for the InvoicePlane instance at baseURL.
func NewClient(baseURL, apiKey string, opts ...httpclient.Option) *Client {
	return &Client{
		rest: httpclient.New(baseURL, httpclient.HeaderAuth{Header: "X-API-KEY", Value: apiKey}, opts...),
	}
}

// Ping verifies the instance is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Invoices []Invoice `json:"invoices"`
	}
	query := url.Values{"limit": {"1"}}
	if err := c.rest.Get(ctx, "/invoices", query, &resp); err != nil {
		return errors.Wrap(err, "invoiceplane ping")
	}
	return nil
}

// Invoices returns every invoice known to the instance.
func (c *Client) Invoices(ctx context.Context) ([]Invoice, error) {
	var resp struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.rest.Get(ctx, "/invoices", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}
	return resp.Invoices, nil
}

// Invoice returns one invoice with its line items.
func (c *Client) Invoice(ctx context.Context, id int) (*Invoice, error) {
	var resp struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.rest.Get(ctx, "/invoices/"+strconv.Itoa(id), nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "get invoice %d", id)
	}
	if len(resp.Invoices) == 0 {
		return nil, errors.NewSync("invoice %d not found", id)
	}
	return &resp.Invoices[0], nil
}

// Clients returns every client record known to the instance.
func (c *Client) Clients(ctx context.Context) ([]ClientRecord, error) {
	var resp struct {
		Clients []ClientRecord `json:"clients"`
	}
	if err := c.rest.Get(ctx, "/clients", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list clients")
	}
	return resp.Clients, nil
}

// CreateInvoice creates a draft invoice and returns its id.
func (c *Client) CreateInvoice(ctx context.Context, inv Invoice) (int, error) {
	var resp struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.rest.Post(ctx, "/invoices", inv, &resp); err != nil {
		return 0, errors.Wrap(err, "create invoice")
	}
	if len(resp.Invoices) == 0 {
		return 0, errors.NewSync("create invoice: empty response")
	}
	return resp.Invoices[0].ID, nil
}
