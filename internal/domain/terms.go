package domain

import (
	"strings"
	"time"
)

// DefaultPaymentTermDays applies when terms are empty or unknown.
const DefaultPaymentTermDays = 30

var paymentTermDays = map[string]int{
	"due_on_receipt": 0,
	"cod":            0,
	"net7":           7,
	"net10":          10,
	"net15":          15,
	"net30":          30,
	"net45":          45,
	"net60":          60,
	"net90":          90,
}

// PaymentTermDays resolves payment terms such as "Net 30" or "net_30" to a
// day count. The second result is false when the default was used.
func PaymentTermDays(terms string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(terms))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	if key == "dueonreceipt" {
		key = "due_on_receipt"
	}
	if d, ok := paymentTermDays[key]; ok {
		return d, true
	}
	return DefaultPaymentTermDays, false
}

// DueDateFor returns invoiceDate plus the payment term days.
func DueDateFor(invoiceDate time.Time, terms string) time.Time {
	days, _ := PaymentTermDays(terms)
	return invoiceDate.AddDate(0, 0, days)
}
