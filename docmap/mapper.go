package docmap

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the source-system view of an ingested document: identity,
// title, creation time, and the OCR text body.
type Document struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
	Content string    `json:"content"`
	Source  string    `json:"source,omitempty"`
}

// Reference returns the stable cross-system reference for the document,
// a composite of the source-system name and the source document id. The
// same document always maps to the same reference, which lets a
// destination system deduplicate repeated syncs.
func (d Document) Reference() string {
	source := d.Source
	if source == "" {
		source = "Paperless"
	}
	return fmt.Sprintf("%s-%d", source, d.ID)
}

// Expense is a destination-system expense record.
type Expense struct {
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

// LineItem is one entry on a destination-system invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// Invoice is a destination-system sales invoice record.
type Invoice struct {
	CustomerID    int        `json:"customer_id,omitempty"`
	InvoiceDate   time.Time  `json:"invoice_date"`
	DueDate       time.Time  `json:"due_date"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	Reference     string     `json:"reference"`
	Note          string     `json:"note,omitempty"`
	Entries       []LineItem `json:"entries"`
}

const maxInvoiceEntries = 5

// DocumentToExpense builds an expense from a document's extracted content.
// The amount is the largest extracted amount, zero when nothing matched.
// The payment date is the first extracted date, falling back to the
// document's creation date, then to today.
func DocumentToExpense(doc Document) Expense {
	ext := Extract(doc.Content)

	amount := decimal.Zero
	if len(ext.Amounts) > 0 {
		amount = ext.Amounts[0]
	}

	return Expense{
		PaymentDate: pickDate(ext.Dates, doc.Created),
		Amount:      amount,
		Description: expenseDescription(doc),
		Reference:   doc.Reference(),
	}
}

// DocumentToInvoice builds an invoice from a document's extracted content.
// The second extracted date is taken as the due date when present. Each
// extracted amount becomes a quantity-one line item, capped at five
// entries; when nothing was extracted a single zero-rate placeholder line
// is emitted so the destination system accepts the invoice.
func DocumentToInvoice(doc Document, customerID int) Invoice {
	ext := Extract(doc.Content)

	date := pickDate(ext.Dates, doc.Created)
	due := date
	if len(ext.Dates) > 1 {
		due = ext.Dates[1]
	}
	inv := Invoice{
		CustomerID:  customerID,
		InvoiceDate: date,
		DueDate:     due,
		Reference:   doc.Reference(),
		Note:        fmt.Sprintf("Imported from document %q", doc.Title),
	}
	if len(ext.InvoiceNumbers) > 0 {
		inv.InvoiceNumber = ext.InvoiceNumbers[0]
	}

	one := decimal.NewFromInt(1)
	for i, amount := range ext.Amounts {
		if i >= maxInvoiceEntries {
			break
		}
		inv.Entries = append(inv.Entries, LineItem{
			Description: fmt.Sprintf("Item %d from %s", i+1, doc.Title),
			Quantity:    one,
			Rate:        amount,
		})
	}
	if len(inv.Entries) == 0 {
		inv.Entries = append(inv.Entries, LineItem{
			Description: fmt.Sprintf("Document: %s", doc.Title),
			Quantity:    one,
			Rate:        decimal.Zero,
		})
	}
	return inv
}

func pickDate(dates []time.Time, created time.Time) time.Time {
	if len(dates) > 0 {
		return dates[0]
	}
	if !created.IsZero() {
		return created
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func expenseDescription(doc Document) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return fmt.Sprintf("Document %d", doc.ID)
	}
	return title
}
