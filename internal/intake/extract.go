package intake

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

const (
	baseFieldConfidence = 0.7
	fieldConfidenceBump = 0.2
)

var (
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:invoice|inv|bill)\b\.?\s*(?:number|num|no\.?|#)?[\s#:.]*([A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\b(?:number|no|doc(?:ument)?)\b\.?[\s#:]*([A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)`),
	}

	poNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:PO|P\.O\.|purchase\s+order)(?:\b|\s)\s*(?:number|num|no\.?|#)?[\s#:.]*([A-Z0-9][A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\b(PO-\d[A-Z0-9-]*)\b`),
	}

	bareDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
		regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\b`),
		regexp.MustCompile(`\b([A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})\b`),
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:grand\s+total|amount\s+due|balance\s+due|total\s+due)[\s:]*\$?\s*([\d,]+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)\btotal\b[\s:]*\$?\s*([\d,]+(?:\.\d{2})?)`),
	}

	taxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:sales\s+tax|tax|vat|gst|hst)\b(?:\s*\([^)]*\))?[\s:]*\$?\s*([\d,]+\.\d{2})`),
		regexp.MustCompile(`(?i)\b(?:sales\s+tax|tax|vat|gst|hst)\b(?:\s*\([^)]*\))?[\s:]*\$\s*([\d,]+)`),
	}

	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*(?:from|vendor|supplier|seller)[\s:]+([A-Za-z][A-Za-z &,.'-]+?)\s*$`),
		regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z &,.'-]{2,}?)\s*$`),
	}
)

var (
	labelledDatePattern = regexp.MustCompile(`(?i)\bdate\b[\s:]*(\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`)
	dueDatePattern      = regexp.MustCompile(`(?i)(?:due\s+date|payment\s+due)[\s:]*(\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`)
	subtotalPattern     = regexp.MustCompile(`(?i)\bsub\s*-?\s*total\b[\s:]*\$?\s*([\d,]+(?:\.\d{2})?)`)
	emailPattern        = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	phonePattern        = regexp.MustCompile(`(?:\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	accountPattern      = regexp.MustCompile(`(?i)\b(?:account|acct)\b\.?\s*(?:number|no\.?|#)?[\s#:.]*(\d{8,17})\b`)
	routingPattern      = regexp.MustCompile(`(?i)\b(?:routing|aba|rtn)\b\.?\s*(?:number|no\.?|#)?[\s#:.]*(\d{9})\b`)
	lineItemPattern     = regexp.MustCompile(`^\s*(\d+)\s+([A-Za-z][A-Za-z0-9 &/-]*?)\s+\$?([\d,]+(?:\.\d{2})?)\s+\$?([\d,]+(?:\.\d{2})?)\s*$`)
	identifierShape     = regexp.MustCompile(`^[A-Z0-9-]+$`)
)

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006-1-2", "2006/1/2",
	"01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006",
	"01/02/06", "1/2/06",
	"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006", "Jan. 2, 2006",
}

// Extraction is what the regex layer pulled out of recognized text.
type Extraction struct {
	Fields    []domain.ExtractedField
	LineItems []domain.LineItem
	PONumbers []string
}

// Value returns the raw value of the extracted field of the given kind.
func (e *Extraction) Value(kind domain.FieldKind) (string, bool) {
	for _, f := range e.Fields {
		if f.Kind == kind {
			return f.Value, true
		}
	}
	return "", false
}

// Amount returns the extracted money field of the given kind.
func (e *Extraction) Amount(kind domain.FieldKind) (decimal.Decimal, bool) {
	v, ok := e.Value(kind)
	if !ok {
		return decimal.Zero, false
	}
	return parseAmount(v)
}

// Date returns the extracted date field of the given kind.
func (e *Extraction) Date(kind domain.FieldKind) (time.Time, bool) {
	v, ok := e.Value(kind)
	if !ok {
		return time.Time{}, false
	}
	return parseDate(v)
}

// ExtractText pulls header fields and line items out of OCR text.
func ExtractText(text string) *Extraction {
	ext := &Extraction{}
	if strings.TrimSpace(text) == "" {
		return ext
	}

	add := func(kind domain.FieldKind, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		ext.Fields = append(ext.Fields, domain.ExtractedField{
			Kind:       kind,
			Value:      value,
			Confidence: fieldConfidence(kind, value, text),
			Method:     domain.ExtractionOCR,
		})
	}

	add(domain.FieldInvoiceNumber, firstMatch(text, invoiceNumberPatterns...))

	ext.PONumbers = FindPONumbers(text)
	if len(ext.PONumbers) > 0 {
		add(domain.FieldPONumber, ext.PONumbers[0])
	}

	due, hasDue := parseDate(firstMatch(text, dueDatePattern))
	if hasDue {
		add(domain.FieldDueDate, due.Format("2006-01-02"))
	}
	if d, ok := invoiceDate(text, due); ok {
		add(domain.FieldInvoiceDate, d.Format("2006-01-02"))
	}

	add(domain.FieldVendorName, vendorName(text))
	add(domain.FieldTotalAmount, firstMatch(text, totalPatterns...))
	add(domain.FieldSubtotal, firstMatch(text, subtotalPattern))
	add(domain.FieldTaxAmount, firstMatch(text, taxPatterns...))
	add(domain.FieldVendorEmail, emailPattern.FindString(text))
	add(domain.FieldVendorPhone, phonePattern.FindString(text))
	add(domain.FieldBankAccount, firstMatch(text, accountPattern))
	add(domain.FieldRoutingNumber, firstMatch(text, routingPattern))

	ext.LineItems = extractLineItems(text)
	return ext
}

// FindPONumbers returns every distinct purchase-order reference in text,
// in order of appearance.
func FindPONumbers(text string) []string {
	type ref struct {
		at int
		po string
	}
	var refs []ref
	for _, re := range poNumberPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			refs = append(refs, ref{at: loc[2], po: strings.ToUpper(text[loc[2]:loc[3]])})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].at < refs[j].at })

	var out []string
	seen := map[string]bool{}
	for _, r := range refs {
		if !seen[r.po] {
			seen[r.po] = true
			out = append(out, r.po)
		}
	}
	return out
}

// invoiceDate prefers a labelled date that is not the due date, then the
// first bare date that differs from it.
func invoiceDate(text string, due time.Time) (time.Time, bool) {
	for _, loc := range labelledDatePattern.FindAllStringSubmatchIndex(text, -1) {
		if strings.Contains(strings.ToLower(text[max(0, loc[0]-8):loc[0]]), "due") {
			continue
		}
		if d, ok := parseDate(text[loc[2]:loc[3]]); ok {
			return d, true
		}
	}
	for _, re := range bareDatePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if d, ok := parseDate(m[1]); ok && !d.Equal(due) {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

func firstMatch(text string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if len(m) > 1 {
				return m[1]
			}
			return m[0]
		}
	}
	return ""
}

func vendorName(text string) string {
	if m := vendorPatterns[0].FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, m := range vendorPatterns[1].FindAllStringSubmatch(text, -1) {
		if !strings.Contains(strings.ToLower(m[1]), "invoice") {
			return m[1]
		}
	}
	return ""
}

func extractLineItems(text string) []domain.LineItem {
	var items []domain.LineItem
	for _, line := range strings.Split(text, "\n") {
		m := lineItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		price, ok := parseAmount(m[3])
		if !ok {
			continue
		}
		total, ok := parseAmount(m[4])
		if !ok {
			continue
		}
		items = append(items, domain.LineItem{
			LineNumber:  len(items) + 1,
			Description: strings.TrimSpace(m[2]),
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   total,
		})
	}
	return items
}

// fieldConfidence starts at 0.7; identifier-shaped invoice and PO numbers and
// totals that appear more than once in the text earn +0.2.
func fieldConfidence(kind domain.FieldKind, value, text string) float64 {
	c := baseFieldConfidence
	switch kind {
	case domain.FieldInvoiceNumber, domain.FieldPONumber:
		if identifierShape.MatchString(value) {
			c += fieldConfidenceBump
		}
	case domain.FieldTotalAmount:
		if strings.Count(text, value) >= 2 {
			c += fieldConfidenceBump
		}
	}
	if c > 1 {
		c = 1
	}
	return c
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
