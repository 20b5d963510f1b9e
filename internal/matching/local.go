package matching

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

const (
	poMissingPenalty      = 20.0
	vendorMismatchPenalty = 15.0
	maxVariancePenalty    = 30.0
	similarityThreshold   = 0.6
	matchedScore          = 0.9
)

// LocalMatcher is a deterministic three-way matcher over stored purchase
// orders and goods receipts.
type LocalMatcher struct {
	orders port.PurchaseOrderRepository
	log    *zap.Logger
}

// NewLocalMatcher creates a LocalMatcher.
func NewLocalMatcher(orders port.PurchaseOrderRepository, log *zap.Logger) *LocalMatcher {
	return &LocalMatcher{orders: orders, log: logger.OrNop(log)}
}

var hundredPct = decimal.NewFromInt(100)

// Match reconciles the request. The header score starts at 100 and loses
// points for missing POs and vendor disagreement; the overall score is
// header×0.3 + mean line score×0.7, scaled to [0,1].
func (m *LocalMatcher) Match(ctx context.Context, req port.MatchRequest) (*port.MatchResult, error) {
	pos, err := m.orders.ListByNumbers(ctx, req.PONumbers)
	if err != nil {
		return nil, fmt.Errorf("matching.LocalMatcher.Match: %w", err)
	}
	grns, err := m.orders.ListReceipts(ctx, req.PONumbers)
	if err != nil {
		return nil, fmt.Errorf("matching.LocalMatcher.Match: %w", err)
	}

	res := &port.MatchResult{
		MatchType:       matchTypeFor(len(req.PONumbers)),
		Source:          domain.MatchSourceLocal,
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: req.Total,
	}
	header := 100.0

	found := make(map[string]bool, len(pos))
	var poLines []domain.OrderLine
	poTotal := decimal.Zero
	vendorOK := true
	for _, po := range pos {
		found[po.PONumber] = true
		res.MatchedPOs = append(res.MatchedPOs, po.PONumber)
		poTotal = poTotal.Add(po.TotalAmount)
		lines, err := domain.DecodeLines(po.Lines)
		if err != nil {
			return nil, fmt.Errorf("matching.LocalMatcher.Match: po %s: %w", po.PONumber, err)
		}
		poLines = append(poLines, lines...)
		if !sameVendor(req, po) {
			vendorOK = false
		}
	}

	missing := false
	for _, n := range req.PONumbers {
		if !found[n] {
			missing = true
			res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
				Type:        domain.MismatchPONotFound,
				Severity:    domain.SeverityError,
				Description: fmt.Sprintf("purchase order %s not found", n),
				Expected:    n,
			})
		}
	}
	if missing {
		header -= poMissingPenalty
	}
	if len(pos) == 0 {
		res.Status = domain.MatchStatusNoMatch
		res.Score = header * 0.3 / 100
		return res, nil
	}

	if !vendorOK {
		header -= vendorMismatchPenalty
		res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
			Type:        domain.MismatchVendor,
			Severity:    domain.SeverityWarning,
			Description: "invoice vendor differs from purchase order vendor",
			Actual:      req.VendorName,
		})
	}

	var grnLines []domain.OrderLine
	for _, g := range grns {
		res.MatchedGRNs = append(res.MatchedGRNs, g.GRNNumber)
		lines, err := domain.DecodeLines(g.Lines)
		if err != nil {
			return nil, fmt.Errorf("matching.LocalMatcher.Match: grn %s: %w", g.GRNNumber, err)
		}
		grnLines = append(grnLines, lines...)
	}
	if len(grns) == 0 {
		res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
			Type:        domain.MismatchGRNNotFound,
			Severity:    domain.SeverityError,
			Description: "no goods receipt recorded for the purchase orders",
		})
	}

	priceTol := req.Tolerance.PricePercent.Div(hundredPct).InexactFloat64()
	qtyTol := req.Tolerance.QuantityPercent.Div(hundredPct).InexactFloat64()

	lineSum := 0.0
	for _, li := range req.LineItems {
		lm := matchLine(li, poLines, grnLines)
		switch {
		case lm.Status == domain.MatchStatusNoMatch:
		case lm.PriceVariance > priceTol || lm.QuantityVariance > qtyTol:
			lm.Status = domain.MatchStatusPartialMatch
		default:
			res.MatchedAmount = res.MatchedAmount.Add(li.Amount())
		}
		if lm.PriceVariance > priceTol {
			res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
				Type:        domain.MismatchPrice,
				Severity:    domain.SeverityError,
				Description: fmt.Sprintf("price variance %.1f%% exceeds tolerance", lm.PriceVariance*100),
				LineNumber:  li.LineNumber,
				Expected:    lm.POPrice.String(),
				Actual:      lm.InvoicePrice.String(),
			})
		}
		if lm.QuantityVariance > qtyTol {
			res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
				Type:        domain.MismatchQuantity,
				Severity:    domain.SeverityError,
				Description: fmt.Sprintf("quantity variance %.1f%% exceeds tolerance", lm.QuantityVariance*100),
				LineNumber:  li.LineNumber,
				Expected:    lm.GRNQuantity.String(),
				Actual:      lm.InvoiceQuantity.String(),
			})
		}
		lineSum += lm.Score
		res.LineMatches = append(res.LineMatches, lm)
	}

	lineScore := 0.0
	if len(res.LineMatches) > 0 {
		lineScore = lineSum / float64(len(res.LineMatches))
	}
	res.Score = (header*0.3 + lineScore*0.7) / 100
	res.UnmatchedAmount = req.Total.Sub(res.MatchedAmount)

	if req.Total.Sub(poTotal).Abs().GreaterThan(req.Tolerance.AmountAbsolute) {
		res.MismatchReasons = append(res.MismatchReasons, domain.MismatchReason{
			Type:        domain.MismatchAmount,
			Severity:    domain.SeverityError,
			Description: "invoice total differs from purchase order total beyond tolerance",
			Expected:    poTotal.StringFixed(2),
			Actual:      req.Total.StringFixed(2),
		})
	}

	res.Status = domain.MatchStatusPartialMatch
	if len(res.MismatchReasons) == 0 && res.Score >= matchedScore {
		res.Status = domain.MatchStatusMatched
	}

	m.log.Debug("matching.LocalMatcher.Match: reconciled",
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.Float64("score", res.Score),
		zap.Int("mismatches", len(res.MismatchReasons)))
	return res, nil
}

// matchLine pairs an invoice line with the first PO line and GRN line whose
// descriptions match. Each variance costs up to 30 points.
func matchLine(li domain.LineItem, poLines, grnLines []domain.OrderLine) domain.LineMatch {
	lm := domain.LineMatch{
		LineNumber:      li.LineNumber,
		Description:     li.Description,
		InvoiceQuantity: li.Quantity,
		InvoicePrice:    li.UnitPrice,
		Status:          domain.MatchStatusNoMatch,
	}

	var po *domain.OrderLine
	for i := range poLines {
		if descriptionsMatch(li.Description, poLines[i].Description) {
			po = &poLines[i]
			break
		}
	}
	if po == nil {
		return lm
	}
	lm.Status = domain.MatchStatusMatched
	lm.POQuantity = po.Quantity
	lm.POPrice = po.UnitPrice
	if po.UnitPrice.IsPositive() {
		lm.PriceVariance = li.UnitPrice.Sub(po.UnitPrice).Abs().Div(po.UnitPrice).InexactFloat64()
	}

	for i := range grnLines {
		if descriptionsMatch(li.Description, grnLines[i].Description) {
			lm.GRNQuantity = grnLines[i].Quantity
			if grnLines[i].Quantity.IsPositive() {
				lm.QuantityVariance = li.Quantity.Sub(grnLines[i].Quantity).Abs().Div(grnLines[i].Quantity).InexactFloat64()
			}
			break
		}
	}

	score := 100.0
	if lm.PriceVariance > 0 {
		score -= math.Min(lm.PriceVariance*100, maxVariancePenalty)
	}
	if lm.QuantityVariance > 0 {
		score -= math.Min(lm.QuantityVariance*100, maxVariancePenalty)
	}
	lm.Score = math.Max(score, 0)
	return lm
}

func sameVendor(req port.MatchRequest, po domain.PurchaseOrder) bool {
	if req.VendorID != nil && po.VendorID != uuid.Nil {
		return *req.VendorID == po.VendorID
	}
	if req.VendorName == "" || po.VendorName == "" {
		return true
	}
	return tokenSimilarity(req.VendorName, po.VendorName) > similarityThreshold ||
		strings.EqualFold(strings.TrimSpace(req.VendorName), strings.TrimSpace(po.VendorName))
}

func descriptionsMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return tokenSimilarity(a, b) > similarityThreshold
}

// tokenSimilarity is the Jaccard index of the lowercase word sets.
func tokenSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		set[f] = true
	}
	return set
}
