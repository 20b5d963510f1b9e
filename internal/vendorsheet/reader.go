// Package vendorsheet reads the vendor master from an Excel workbook.
package vendorsheet

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"ivms/internal/domain"
)

// vendorNamespace seeds the name-derived ids of rows without an id column,
// so re-importing the same sheet upserts instead of duplicating.
var vendorNamespace = uuid.MustParse("5b8f3c1e-9a4d-4f6b-8e2a-1c7d0e9f4a36")

// ErrNoNameColumn is returned when the header row has no name column.
var ErrNoNameColumn = errors.New("vendor sheet has no name column")

// RowError reports a data row that could not be imported.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result holds the vendors read from a sheet and the rows that were skipped.
type Result struct {
	Vendors []domain.Vendor `json:"vendors"`
	Skipped []RowError      `json:"skipped,omitempty"`
}

var headerAliases = map[string]string{
	"id":             "id",
	"vendor_id":      "id",
	"name":           "name",
	"vendor":         "name",
	"vendor_name":    "name",
	"tax_id":         "tax_id",
	"vat_id":         "tax_id",
	"email":          "email",
	"website":        "website",
	"bank_account":   "bank_account",
	"account_number": "bank_account",
	"routing_number": "routing_number",
	"payment_terms":  "payment_terms",
	"terms":          "payment_terms",
	"score":          "historical_score",
}

// Read parses the first sheet of the workbook in r. Row 1 is the header;
// columns are matched by name and unknown columns are ignored.
func Read(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open Excel file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return &Result{}, nil
	}

	cols := mapHeader(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, ErrNoNameColumn
	}

	res := &Result{}
	seen := make(map[uuid.UUID]int)
	for i := 1; i < len(rows); i++ {
		rowNum := i + 1
		row := rows[i]
		if blank(row) {
			continue
		}
		v, err := toVendor(row, cols)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		if first, dup := seen[v.ID]; dup {
			res.Skipped = append(res.Skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("same vendor as row %d", first)})
			continue
		}
		seen[v.ID] = rowNum
		res.Vendors = append(res.Vendors, v)
	}
	return res, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := headerAliases[key]; ok {
			if _, taken := cols[field]; !taken {
				cols[field] = i
			}
		}
	}
	return cols
}

func toVendor(row []string, cols map[string]int) (domain.Vendor, error) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok {
			return ""
		}
		return cellVal(row, i)
	}

	name := get("name")
	if name == "" {
		return domain.Vendor{}, errors.New("name is empty")
	}

	v := domain.Vendor{
		Name:          name,
		TaxID:         get("tax_id"),
		Email:         strings.ToLower(get("email")),
		Website:       get("website"),
		BankAccount:   get("bank_account"),
		RoutingNumber: get("routing_number"),
		PaymentTerms:  get("payment_terms"),
	}

	if raw := get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.Vendor{}, fmt.Errorf("invalid id %q", raw)
		}
		v.ID = id
	} else {
		v.ID = uuid.NewSHA1(vendorNamespace, []byte(strings.ToLower(name)))
	}

	if v.Email != "" {
		if _, err := mail.ParseAddress(v.Email); err != nil {
			return domain.Vendor{}, fmt.Errorf("invalid email %q", v.Email)
		}
	}

	if raw := get("historical_score"); raw != "" {
		score, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil || score < 0 || score > 100 {
			return domain.Vendor{}, fmt.Errorf("invalid score %q", raw)
		}
		v.HistoricalScore = score
	}
	return v, nil
}

func cellVal(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
