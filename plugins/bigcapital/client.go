// Package bigcapital integrates the BigCapital accounting system as the
// destination side of invoice, expense, and document sync.
package bigcapital

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/internal/httpclient"
)

const apiPrefix = "/api/v1"

const wireDate = "2006-01-02"

// Customer is one BigCapital customer record.
type Customer struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	WorkPhone   string `json:"work_phone,omitempty"`
}

type customerList struct {
	Data []Customer `json:"data"`
}

type createResponse struct {
	ID int `json:"id"`
}

type invoiceEntry struct {
	Index       int             `json:"index"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

type saleInvoice struct {
	CustomerID     int             `json:"customer_id"`
	InvoiceDate    string          `json:"invoice_date"`
	DueDate        string          `json:"due_date"`
	InvoiceNo      string          `json:"invoice_no,omitempty"`
	ReferenceNo    string          `json:"reference_no"`
	DeliveryStatus string          `json:"delivery_status,omitempty"`
	Note           string          `json:"invoice_message,omitempty"`
	Entries        []invoiceEntry  `json:"entries"`
}

type expensePayload struct {
	PaymentDate   string          `json:"payment_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Description   string          `json:"description"`
	ReferenceNo   string          `json:"reference_no"`
	PublishedDate string          `json:"published_at,omitempty"`
}

// Client talks to one BigCapital instance. Authentication is a bearer
// token; every endpoint lives under /api/v1 and responses arrive in a
// {"data": ...} envelope.
//
// Client implements docmap.ContactDirectory. Contact search filters the
// full customer list locally because the hosted search endpoint matches
// too loosely to trust for identity resolution.
type Client struct {
	rest *httpclient.Client
}

// NewClient builds a client for the BigCapital instance at baseURL.
func NewClient(baseURL, token string, opts ...httpclient.Option) *Client {
	return &Client{
		rest: httpclient.New(baseURL, httpclient.BearerAuth{Token: token}, opts...),
	}
}

// Ping verifies the instance is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	var resp customerList
	if err := c.rest.Get(ctx, apiPrefix+"/customers", nil, &resp); err != nil {
		return errors.Wrap(err, "bigcapital ping")
	}
	return nil
}

// Customers returns every customer known to the instance.
func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	var resp customerList
	if err := c.rest.Get(ctx, apiPrefix+"/customers", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return resp.Data, nil
}

// SearchContacts filters the customer list by normalized email or name.
// Exact email wins, then exact normalized name, then name substring.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]docmap.Contact, error) {
	customers, err := c.Customers(ctx)
	if err != nil {
		return nil, err
	}

	norm := docmap.NormalizeName(query)
	var exact, loose []docmap.Contact
	for _, cust := range customers {
		contact := docmap.Contact{
			ID:          cust.ID,
			DisplayName: cust.DisplayName,
			Email:       cust.Email,
			Phone:       cust.WorkPhone,
		}
		switch {
		case norm != "" && docmap.NormalizeName(cust.Email) == norm:
			exact = append(exact, contact)
		case norm != "" && docmap.NormalizeName(cust.DisplayName) == norm:
			exact = append(exact, contact)
		case norm != "" && strings.Contains(docmap.NormalizeName(cust.DisplayName), norm):
			loose = append(loose, contact)
		}
	}
	return append(exact, loose...), nil
}

// CreateContact creates a customer and returns it with its assigned id.
func (c *Client) CreateContact(ctx context.Context, contact docmap.Contact) (*docmap.Contact, error) {
	payload := Customer{
		DisplayName: contact.DisplayName,
		Email:       contact.Email,
		WorkPhone:   contact.Phone,
	}
	if payload.DisplayName == "" {
		payload.DisplayName = contact.Email
	}
	var resp createResponse
	if err := c.rest.Post(ctx, apiPrefix+"/customers", payload, &resp); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	created := contact
	created.ID = resp.ID
	return &created, nil
}

// CreateInvoice creates a sale invoice and returns its id.
func (c *Client) CreateInvoice(ctx context.Context, inv docmap.Invoice, deliveryStatus string) (int, error) {
	if inv.CustomerID <= 0 {
		return 0, errors.NewSync("invoice %s: no customer resolved", inv.Reference)
	}
	payload := saleInvoice{
		CustomerID:     inv.CustomerID,
		InvoiceDate:    inv.InvoiceDate.Format(wireDate),
		DueDate:        inv.DueDate.Format(wireDate),
		InvoiceNo:      inv.InvoiceNumber,
		ReferenceNo:    inv.Reference,
		DeliveryStatus: deliveryStatus,
		Note:           inv.Note,
	}
	for i, entry := range inv.Entries {
		payload.Entries = append(payload.Entries, invoiceEntry{
			Index:       i + 1,
			Description: entry.Description,
			Quantity:    entry.Quantity,
			Rate:        entry.Rate,
		})
	}
	var resp createResponse
	if err := c.rest.Post(ctx, apiPrefix+"/sale-invoices", payload, &resp); err != nil {
		return 0, errors.Wrapf(err, "create invoice %s", inv.Reference)
	}
	return resp.ID, nil
}

// CreateExpense creates an expense and returns its id.
func (c *Client) CreateExpense(ctx context.Context, exp docmap.Expense) (int, error) {
	payload := expensePayload{
		PaymentDate:   exp.PaymentDate.Format(wireDate),
		TotalAmount:   exp.Amount,
		Description:   exp.Description,
		ReferenceNo:   exp.Reference,
		PublishedDate: time.Now().UTC().Format(wireDate),
	}
	var resp createResponse
	if err := c.rest.Post(ctx, apiPrefix+"/expenses", payload, &resp); err != nil {
		return 0, errors.Wrapf(err, "create expense %s", exp.Reference)
	}
	return resp.ID, nil
}
