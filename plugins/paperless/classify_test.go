package paperless

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finbridge/finbridge/config"
)

func TestClassifyText(t *testing.T) {
	assert.Equal(t, TypeInvoice, ClassifyText("INVOICE #42 Bill To: Acme Due Date: 02/01/2024"))
	assert.Equal(t, TypeReceipt, ClassifyText("RECEIPT - thank you for your purchase, paid in cash"))
	assert.Equal(t, TypeUnknown, ClassifyText("meeting notes from tuesday"))
	assert.Equal(t, TypeUnknown, ClassifyText(""))
}

func TestClassifyPrefersTags(t *testing.T) {
	p := New()
	p.SetConfig(config.PluginConfig{Settings: map[string]interface{}{
		"invoice_tag": float64(5),
		"receipt_tag": float64(9),
	}})

	// the receipt tag wins over invoice-looking text
	doc := Document{Tags: []int{9}, Content: "INVOICE bill to somebody"}
	assert.Equal(t, TypeReceipt, p.Classify(doc))

	doc = Document{Tags: []int{5}}
	assert.Equal(t, TypeInvoice, p.Classify(doc))
}

func TestClassifyFallsBackToText(t *testing.T) {
	p := New()
	doc := Document{Tags: []int{3}, Content: "receipt, paid"}
	assert.Equal(t, TypeReceipt, p.Classify(doc))
}
