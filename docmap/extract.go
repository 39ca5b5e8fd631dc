// Package docmap converts unstructured OCR text and lightweight document
// metadata into structured financial records, and maps records between
// external accounting systems.
//
// Extraction is best-effort: the source text comes from OCR and is
// inherently unreliable, so extraction functions never return errors. A
// pattern that does not match yields an empty result; a match that does not
// parse is dropped silently.
package docmap

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total[:\s]+\$?([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`(?i)amount[:\s]+\$?([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`(?i)balance[:\s]+\$?([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`\$([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`(?i)([0-9,]+\.?[0-9]*)\s*(?:usd|dollars?)`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:date|dated?)[:\s]+([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`),
	regexp.MustCompile(`([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`),
	regexp.MustCompile(`([0-9]{4}-[0-9]{1,2}-[0-9]{1,2})`),
}

// Four-digit-year layouts come first: a two-digit-year layout would
// otherwise truncate "01/15/2024" into year 20.
var dateLayouts = []string{
	"01/02/2006",
	"01-02-2006",
	"2006-01-02",
	"01/02/06",
	"01-02-06",
}

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s*#?[:\s]*([A-Z0-9-]+)`),
	regexp.MustCompile(`(?i)inv\s*#?[:\s]*([A-Z0-9-]+)`),
	regexp.MustCompile(`(?i)number[:\s]+([A-Z0-9-]+)`),
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// ContactInfo holds the first email and phone found in a document.
// Only one of each is ever extracted per document.
type ContactInfo struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ExtractAmounts pulls monetary amounts out of text, deduplicated and
// sorted descending. Commas are stripped before parsing; malformed matches
// are dropped.
func ExtractAmounts(text string) []decimal.Decimal {
	var amounts []decimal.Decimal
	seen := make(map[string]bool)

	for _, pattern := range amountPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			raw := strings.ReplaceAll(match[1], ",", "")
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			key := amount.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			amounts = append(amounts, amount)
		}
	}

	sort.Slice(amounts, func(i, j int) bool {
		return amounts[i].GreaterThan(amounts[j])
	})
	return amounts
}

// ExtractDates pulls dates out of text, deduplicated and sorted ascending.
// Each candidate is tried against a fixed layout list; the first layout
// that parses wins, unparsable candidates are dropped.
func ExtractDates(text string) []time.Time {
	var dates []time.Time
	seen := make(map[time.Time]bool)

	for _, pattern := range datePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			for _, layout := range dateLayouts {
				parsed, err := time.Parse(layout, match[1])
				if err != nil {
					continue
				}
				if !seen[parsed] {
					seen[parsed] = true
					dates = append(dates, parsed)
				}
				break
			}
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ExtractInvoiceNumbers pulls label-prefixed invoice numbers out of text,
// deduplicated in first-seen order.
func ExtractInvoiceNumbers(text string) []string {
	var numbers []string
	seen := make(map[string]bool)

	for _, pattern := range invoiceNumberPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if seen[match[1]] {
				continue
			}
			seen[match[1]] = true
			numbers = append(numbers, match[1])
		}
	}
	return numbers
}

// ExtractContactInfo pulls the first email and phone number out of text.
func ExtractContactInfo(text string) ContactInfo {
	var info ContactInfo
	if m := emailPattern.FindString(text); m != "" {
		info.Email = m
	}
	if m := phonePattern.FindString(text); m != "" {
		info.Phone = m
	}
	return info
}

// Extraction is the aggregate structured record pulled from one document's
// text. Built fresh per document and never persisted directly; it feeds a
// destination-system transform.
type Extraction struct {
	Amounts        []decimal.Decimal `json:"amounts"`
	Dates          []time.Time       `json:"dates"`
	InvoiceNumbers []string          `json:"invoice_numbers"`
	Contact        ContactInfo       `json:"contact"`
}

// Extract runs every extractor over the text.
func Extract(text string) Extraction {
	return Extraction{
		Amounts:        ExtractAmounts(text),
		Dates:          ExtractDates(text),
		InvoiceNumbers: ExtractInvoiceNumbers(text),
		Contact:        ExtractContactInfo(text),
	}
}
