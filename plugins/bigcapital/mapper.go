package bigcapital

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugins/invoiceplane"
)

// invoicePlaneStatuses maps InvoicePlane's numeric invoice states to
// BigCapital delivery statuses.
var invoicePlaneStatuses = map[int]string{
	1: "draft",
	2: "sent",
	3: "viewed",
	4: "paid",
	5: "overdue",
	6: "cancelled",
}

// DeliveryStatus translates an InvoicePlane status code. BigCapital has no
// "viewed" state, so viewed collapses to sent; unknown codes fall back to
// draft.
func DeliveryStatus(code int) string {
	status, ok := invoicePlaneStatuses[code]
	if !ok {
		return "draft"
	}
	if status == "viewed" {
		return "sent"
	}
	return status
}

// FromInvoicePlane transforms an InvoicePlane invoice into the destination
// invoice shape. The customer must already be resolved; an invoice without
// a customer id cannot be created and fails hard here rather than with an
// opaque validation error from the API.
func FromInvoicePlane(src invoiceplane.Invoice, customerID int) (docmap.Invoice, error) {
	if customerID <= 0 {
		return docmap.Invoice{}, errors.NewSync(
			"invoice %s: customer %q not resolved", src.Number, src.ClientName)
	}

	date := parseWireDate(src.DateCreated)
	if date.IsZero() {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	due := parseWireDate(src.DateDue)
	if due.IsZero() {
		due = date.AddDate(0, 0, 30)
	}

	inv := docmap.Invoice{
		CustomerID:    customerID,
		InvoiceDate:   date,
		DueDate:       due,
		InvoiceNumber: src.Number,
		Reference:     fmt.Sprintf("InvoicePlane-%d", src.ID),
	}
	for _, item := range src.Items {
		desc := item.Name
		if item.Description != "" {
			desc = item.Description
		}
		inv.Entries = append(inv.Entries, docmap.LineItem{
			Description: desc,
			Quantity:    item.Quantity,
			Rate:        item.Price,
		})
	}
	if len(inv.Entries) == 0 {
		inv.Entries = append(inv.Entries, docmap.LineItem{
			Description: fmt.Sprintf("Invoice %s", src.Number),
			Quantity:    decimal.NewFromInt(1),
			Rate:        src.Total,
		})
	}
	return inv, nil
}

// SourceContact lifts the client fields off an InvoicePlane invoice for
// contact resolution.
func SourceContact(src invoiceplane.Invoice) docmap.Contact {
	return docmap.Contact{
		DisplayName: src.ClientName,
		Email:       src.ClientEmail,
	}
}

// parseWireDate returns the zero time for empty or malformed input; callers
// choose the fallback.
func parseWireDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(wireDate, s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
