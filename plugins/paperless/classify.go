package paperless

import "strings"

// Document type vocabulary.
const (
	TypeInvoice = "invoice"
	TypeReceipt = "receipt"
	TypeUnknown = "unknown"
)

var invoiceKeywords = []string{"invoice", "inv #", "bill to", "due date", "payment terms"}

var receiptKeywords = []string{"receipt", "paid", "thank you for your purchase", "change due", "cash"}

// ClassifyText guesses the financial document type from its OCR text by
// keyword scoring. Ties and empty text report unknown.
func ClassifyText(content string) string {
	lower := strings.ToLower(content)

	var invoiceScore, receiptScore int
	for _, kw := range invoiceKeywords {
		if strings.Contains(lower, kw) {
			invoiceScore++
		}
	}
	for _, kw := range receiptKeywords {
		if strings.Contains(lower, kw) {
			receiptScore++
		}
	}

	switch {
	case invoiceScore > receiptScore:
		return TypeInvoice
	case receiptScore > invoiceScore:
		return TypeReceipt
	default:
		return TypeUnknown
	}
}

// Classify determines a Paperless document's type. Tags configured in the
// plugin settings (invoice_tag, receipt_tag) take precedence over keyword
// scoring because users curate them deliberately.
func (p *Plugin) Classify(doc Document) string {
	invoiceTag := p.tagSetting("invoice_tag")
	receiptTag := p.tagSetting("receipt_tag")
	for _, tag := range doc.Tags {
		switch {
		case invoiceTag != 0 && tag == invoiceTag:
			return TypeInvoice
		case receiptTag != 0 && tag == receiptTag:
			return TypeReceipt
		}
	}
	return ClassifyText(doc.Content)
}

// tagSetting reads a numeric tag id from the plugin settings. JSON numbers
// decode as float64; integers are accepted too.
func (p *Plugin) tagSetting(key string) int {
	switch v := p.Config.Settings[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
