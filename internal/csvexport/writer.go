package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the invoice register header row.
var columns = []string{
	"Invoice ID",
	"Invoice Number",
	"Vendor",
	"Channel",
	"Invoice Date",
	"Due Date",
	"Currency",
	"Subtotal",
	"Tax",
	"Total",
	"Balance",
	"PO Numbers",
	"Match Status",
	"Match Score",
	"Fraud Score",
	"Status",
	"Sub Status",
	"Priority",
	"Automation Score",
	"Auto Approved",
	"Flags",
	"Line Item Count",
	"Received At",
}

// Writer wraps csv.Writer for exporting the invoice register.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteInvoices converts a batch of invoices to CSV rows and writes them.
func (w *Writer) WriteInvoices(invs []domain.Invoice) error {
	for i := range invs {
		if err := w.csv.Write(invoiceToRow(&invs[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func invoiceToRow(inv *domain.Invoice) []string {
	row := make([]string, len(columns))
	row[0] = inv.ID.String()
	row[1] = inv.InvoiceNumber
	row[2] = inv.VendorName
	row[3] = string(inv.Channel)
	row[4] = formatDate(inv.InvoiceDate)
	row[5] = formatDate(inv.DueDate)
	row[6] = inv.Currency
	row[7] = formatMoney(inv.Subtotal)
	row[8] = formatMoney(inv.TaxAmount)
	row[9] = formatMoney(inv.TotalAmount)
	row[10] = formatMoney(inv.Balance)
	row[11] = strings.Join(inv.PONumbers, ";")
	row[12] = string(inv.MatchStatus)
	row[13] = formatScore(inv.MatchScore)
	row[14] = formatScore(inv.FraudScore)
	row[15] = string(inv.Status)
	row[16] = inv.SubStatus
	row[17] = string(inv.Priority)
	row[18] = formatScore(inv.AutomationScore)
	row[19] = formatBool(inv.AutoApproved)
	row[20] = formatFlags(inv.Flags)
	row[21] = strconv.Itoa(len(inv.LineItems))
	row[22] = formatTime(inv.ReceivedDate)
	return row
}

func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// formatFlags lists the raised flags in a fixed order, separated by ";".
func formatFlags(f domain.Flags) string {
	var out []string
	for _, fl := range []struct {
		on   bool
		name string
	}{
		{f.IsDuplicate, "duplicate"},
		{f.IsFraudSuspect, "fraud_suspect"},
		{f.HasAnomaly, "anomaly"},
		{f.BankAccountChanged, "bank_account_changed"},
		{f.RequiresManualReview, "manual_review"},
		{f.IsHighValue, "high_value"},
	} {
		if fl.on {
			out = append(out, fl.name)
		}
	}
	return strings.Join(out, ";")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized export file name.
// Format: invoices_{sanitized_label}_{YYYY-MM-DD}.csv
func BuildFilename(label string, now time.Time) string {
	sanitized := SanitizeFilename(label)
	if sanitized == "" {
		sanitized = "all"
	}
	return fmt.Sprintf("invoices_%s_%s.csv", sanitized, now.Format("2006-01-02"))
}
