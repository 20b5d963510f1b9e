package intake

import (
	"strings"

	"golang.org/x/text/cases"

	"ivms/internal/domain"
)

var urgencyKeywords = []string{"urgent", "asap", "immediate", "rush", "overdue", "final notice"}

var (
	goodsKeywords = []string{
		"product", "part", "parts", "equipment", "hardware", "material", "materials", "supplies",
		"widget", "device", "unit", "units", "component", "inventory", "kit", "box", "pallet",
	}
	serviceKeywords = []string{
		"service", "services", "consulting", "labor", "labour", "support", "maintenance",
		"installation", "training", "hours", "repair", "professional", "advisory",
	}
)

var folder = cases.Fold()

// IsUrgent reports whether text contains an urgency keyword.
func IsUrgent(text string) bool {
	t := folder.String(text)
	for _, kw := range urgencyKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// InferCategory classifies line items as goods or services by keyword
// presence. Ties and unrecognised descriptions are other.
func InferCategory(items []domain.LineItem) domain.Category {
	var goods, services int
	for _, it := range items {
		words := strings.FieldsFunc(folder.String(it.Description), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		})
		for _, w := range words {
			if contains(goodsKeywords, w) {
				goods++
			}
			if contains(serviceKeywords, w) {
				services++
			}
		}
	}
	switch {
	case goods > services:
		return domain.CategoryGoods
	case services > goods:
		return domain.CategoryServices
	default:
		return domain.CategoryOther
	}
}

func contains(list []string, w string) bool {
	for _, s := range list {
		if s == w {
			return true
		}
	}
	return false
}
