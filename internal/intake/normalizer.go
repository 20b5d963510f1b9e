package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Normalizer converts channel payloads into canonical invoices. It never
// persists anything.
type Normalizer struct {
	vendors  port.VendorRepository
	ocr      port.TextRecognizer
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

// NewNormalizer creates a Normalizer. ocr may be nil, in which case attached
// files are hashed but not read.
func NewNormalizer(vendors port.VendorRepository, ocr port.TextRecognizer, log *zap.Logger) *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Normalizer{
		vendors:  vendors,
		ocr:      ocr,
		validate: v,
		now:      time.Now,
		log:      logger.OrNop(log),
	}
}

// WithClock overrides the normalizer's notion of now.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize builds the canonical invoice for one submission. The result has
// no ID and no audit trail; the intake service assigns both on save.
func (n *Normalizer) Normalize(ctx context.Context, p Payload, files []AttachedFile, ch domain.Channel) (*Normalized, error) {
	if !domain.ValidChannels[ch] {
		return nil, fmt.Errorf("intake.Normalize: %w: %q", domain.ErrInvalidChannel, ch)
	}
	if ch.IsStructured() {
		if err := n.checkRequired(p); err != nil {
			return nil, err
		}
	}

	prepared, err := prepareFiles(files, ch)
	if err != nil {
		return nil, err
	}

	vendor, err := n.resolveVendor(ctx, p, ch)
	if err != nil {
		return nil, err
	}

	now := n.now().UTC()
	inv := fromPayload(p, ch, now)

	totalKnown := p.TotalAmount != nil
	if !ch.IsStructured() {
		text, conf, recognized := n.recognize(ctx, prepared)
		if ch == domain.ChannelEmail {
			text = strings.Join(nonEmpty(p.Subject, p.Body, text), "\n")
		}
		ext := ExtractText(text)
		applyExtraction(inv, p, ext)
		applyConfidence(inv, p, ch, conf, recognized)
		if _, ok := ext.Amount(domain.FieldTotalAmount); ok {
			totalKnown = true
		}

		if ch == domain.ChannelEmail && IsUrgent(text) {
			inv.IsUrgent = true
			inv.Priority = domain.PriorityHigh
		}
	} else {
		inv.ExtractionMethod = domain.ExtractionTemplate
		inv.ExtractionConfidence = 1.0
	}

	applyVendor(inv, vendor)
	canonicalize(inv, prepared, totalKnown)

	n.log.Debug("intake.Normalize: invoice normalized",
		zap.String("channel", string(ch)),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Float64("extraction_confidence", inv.ExtractionConfidence),
		zap.Int("files", len(prepared)))

	return &Normalized{Invoice: inv, Files: prepared}, nil
}

func (n *Normalizer) checkRequired(p Payload) error {
	err := n.validate.Struct(headerOf(p))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("intake.checkRequired: %w", err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &domain.MissingRequiredFieldsError{Fields: missing}
}

func prepareFiles(files []AttachedFile, ch domain.Channel) ([]PreparedFile, error) {
	out := make([]PreparedFile, 0, len(files))
	for _, f := range files {
		ft, ok := domain.AllowedContentTypes[f.ContentType]
		if !ok {
			return nil, fmt.Errorf("intake.prepareFiles: %w: %s", domain.ErrUnsupportedFileType, f.ContentType)
		}
		sum := sha256.Sum256(f.Content)
		out = append(out, PreparedFile{
			AttachedFile:     f,
			FileType:         ft,
			Hash:             hex.EncodeToString(sum[:]),
			NeedsEnhancement: ch == domain.ChannelMobile && ft.IsImage(),
		})
	}
	return out, nil
}

func (n *Normalizer) resolveVendor(ctx context.Context, p Payload, ch domain.Channel) (*domain.Vendor, error) {
	if p.VendorID != nil && *p.VendorID != uuid.Nil {
		v, err := n.vendors.GetByID(ctx, *p.VendorID)
		if err != nil {
			return nil, fmt.Errorf("intake.resolveVendor: %w", err)
		}
		return v, nil
	}
	if ch != domain.ChannelEmail {
		return nil, nil
	}
	d := senderDomain(p.SenderEmail)
	if d == "" {
		return nil, nil
	}
	v, err := n.vendors.FindByDomain(ctx, d)
	if errors.Is(err, domain.ErrVendorNotFound) {
		n.log.Info("intake.resolveVendor: no vendor for sender domain", zap.String("domain", d))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("intake.resolveVendor: %w", err)
	}
	return v, nil
}

// recognize runs OCR over every readable file. Recognizer failures leave the
// file unread.
func (n *Normalizer) recognize(ctx context.Context, files []PreparedFile) (string, float64, bool) {
	if n.ocr == nil {
		return "", 0, false
	}
	var (
		texts []string
		total float64
		count int
	)
	for i := range files {
		f := &files[i]
		if f.FileType == domain.FileTypeXML {
			continue
		}
		rt, err := n.ocr.Recognize(ctx, f.Content, f.ContentType)
		if err != nil {
			n.log.Warn("intake.recognize: text recognition failed",
				zap.String("file", f.Name), zap.Error(err))
			continue
		}
		f.Text, f.Confidence, f.Pages, f.Recognized = rt.Text, rt.Confidence, rt.Pages, true
		texts = append(texts, rt.Text)
		total += rt.Confidence
		count++
	}
	if count == 0 {
		return "", 0, false
	}
	return strings.Join(texts, "\n"), total / float64(count), true
}

func fromPayload(p Payload, ch domain.Channel, now time.Time) *domain.Invoice {
	method := domain.ExtractionManual
	if ch.IsStructured() {
		method = domain.ExtractionTemplate
	}

	inv := &domain.Invoice{
		InvoiceNumber:  strings.TrimSpace(p.InvoiceNumber),
		VendorID:       p.VendorID,
		VendorName:     strings.TrimSpace(p.VendorName),
		VendorTaxID:    strings.TrimSpace(p.VendorTaxID),
		Channel:        ch,
		DocumentType:   p.DocumentType,
		ReceivedDate:   now,
		PaymentTerms:   p.PaymentTerms,
		Currency:       strings.ToUpper(p.Currency),
		Subtotal:       p.Subtotal,
		TaxAmount:      p.TaxAmount,
		TaxRate:        p.TaxRate,
		TaxType:        p.TaxType,
		ShippingAmount: p.ShippingAmount,
		DiscountAmount: p.DiscountAmount,
		AmountPaid:     p.AmountPaid,
		Category:       p.Category,
		PONumbers:      dedupe(p.PONumbers),
		LineItems:      append([]domain.LineItem(nil), p.LineItems...),
		GLAccount:      p.GLAccount,
		CostCenter:     p.CostCenter,
		Status:         domain.StatusSubmitted,
		Priority:       domain.PriorityNormal,
		SubmittedBy:    p.SubmittedBy,
	}
	if p.TotalAmount != nil {
		inv.TotalAmount = *p.TotalAmount
	}
	if p.BankDetails != nil {
		bd := *p.BankDetails
		inv.BankDetails = &bd
	}
	if p.InvoiceDate != nil {
		inv.InvoiceDate = p.InvoiceDate.UTC()
	}
	if p.DueDate != nil {
		inv.DueDate = p.DueDate.UTC()
	}

	explicit := func(kind domain.FieldKind, value string) {
		if value == "" {
			return
		}
		inv.ExtractedFields = append(inv.ExtractedFields, domain.ExtractedField{
			Kind: kind, Value: value, Confidence: 1.0, Method: method,
		})
	}
	explicit(domain.FieldInvoiceNumber, inv.InvoiceNumber)
	explicit(domain.FieldVendorName, inv.VendorName)
	if len(inv.PONumbers) > 0 {
		explicit(domain.FieldPONumber, inv.PONumbers[0])
	}
	if !inv.InvoiceDate.IsZero() {
		explicit(domain.FieldInvoiceDate, inv.InvoiceDate.Format("2006-01-02"))
	}
	if !inv.DueDate.IsZero() {
		explicit(domain.FieldDueDate, inv.DueDate.Format("2006-01-02"))
	}
	if p.TotalAmount != nil {
		explicit(domain.FieldTotalAmount, p.TotalAmount.String())
	}
	if !p.Subtotal.IsZero() {
		explicit(domain.FieldSubtotal, p.Subtotal.String())
	}
	if !p.TaxAmount.IsZero() {
		explicit(domain.FieldTaxAmount, p.TaxAmount.String())
	}
	explicit(domain.FieldVendorEmail, strings.ToLower(strings.TrimSpace(p.SenderEmail)))
	if p.BankDetails != nil {
		explicit(domain.FieldBankAccount, p.BankDetails.AccountNumber)
		explicit(domain.FieldRoutingNumber, p.BankDetails.RoutingNumber)
	}
	return inv
}

// applyExtraction fills blanks from OCR. Explicit values always win, and OCR
// line items are used only when the payload carried none.
func applyExtraction(inv *domain.Invoice, p Payload, ext *Extraction) {
	inv.MergeFields(ext.Fields)

	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber, _ = ext.Value(domain.FieldInvoiceNumber)
	}
	if inv.VendorName == "" {
		inv.VendorName, _ = ext.Value(domain.FieldVendorName)
	}
	if len(inv.PONumbers) == 0 {
		inv.PONumbers = ext.PONumbers
	}
	if inv.InvoiceDate.IsZero() {
		if d, ok := ext.Date(domain.FieldInvoiceDate); ok {
			inv.InvoiceDate = d
		}
	}
	if inv.DueDate.IsZero() {
		if d, ok := ext.Date(domain.FieldDueDate); ok {
			inv.DueDate = d
		}
	}
	if p.TotalAmount == nil {
		if v, ok := ext.Amount(domain.FieldTotalAmount); ok {
			inv.TotalAmount = v
		}
	}
	if inv.Subtotal.IsZero() {
		if v, ok := ext.Amount(domain.FieldSubtotal); ok {
			inv.Subtotal = v
		}
	}
	if inv.TaxAmount.IsZero() {
		if v, ok := ext.Amount(domain.FieldTaxAmount); ok {
			inv.TaxAmount = v
		}
	}
	if inv.BankDetails == nil {
		acct, hasAcct := ext.Value(domain.FieldBankAccount)
		routing, hasRouting := ext.Value(domain.FieldRoutingNumber)
		if hasAcct || hasRouting {
			inv.BankDetails = &domain.BankDetails{AccountNumber: acct, RoutingNumber: routing}
		}
	}
	if len(p.LineItems) == 0 && len(ext.LineItems) > 0 {
		inv.LineItems = ext.LineItems
	}
}

func applyConfidence(inv *domain.Invoice, p Payload, ch domain.Channel, ocrConf float64, recognized bool) {
	keyed := p.InvoiceNumber != "" && p.TotalAmount != nil
	switch {
	case (ch == domain.ChannelPortal || ch == domain.ChannelManual) && (keyed || !recognized):
		inv.ExtractionMethod = domain.ExtractionManual
		inv.ExtractionConfidence = 1.0
	default:
		inv.ExtractionMethod = domain.ExtractionOCR
		inv.ExtractionConfidence = ocrConf
	}
	if inv.LowConfidenceCapture() {
		inv.Flags.RequiresManualReview = true
	}
}

func applyVendor(inv *domain.Invoice, v *domain.Vendor) {
	if v == nil {
		return
	}
	id := v.ID
	inv.VendorID = &id
	inv.VendorName = v.Name
	if v.TaxID != "" {
		inv.VendorTaxID = v.TaxID
	}
	if inv.PaymentTerms == "" {
		inv.PaymentTerms = v.PaymentTerms
	}
	if inv.BankDetails != nil && inv.BankDetails.AccountNumber != "" && v.BankAccount != "" &&
		inv.BankDetails.AccountNumber != v.BankAccount {
		inv.Flags.BankAccountChanged = true
	}
}

// canonicalize derives everything that is not supplied so that the same input
// always yields the same record.
func canonicalize(inv *domain.Invoice, files []PreparedFile, totalKnown bool) {
	if inv.DocumentType == "" {
		inv.DocumentType = domain.DocumentTypeInvoice
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}
	for i := range inv.LineItems {
		if inv.LineItems[i].LineNumber == 0 {
			inv.LineItems[i].LineNumber = i + 1
		}
	}
	if inv.Subtotal.IsZero() && len(inv.LineItems) > 0 {
		sum := decimal.Zero
		for _, it := range inv.LineItems {
			sum = sum.Add(it.Amount())
		}
		inv.Subtotal = sum
	}
	if !totalKnown {
		inv.TotalAmount = inv.DerivedTotal()
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = inv.ReceivedDate
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = domain.DueDateFor(inv.InvoiceDate, inv.PaymentTerms)
	}
	if inv.Category == "" {
		inv.Category = InferCategory(inv.LineItems)
	}
	if len(files) > 0 {
		inv.DocumentHash = files[0].Hash
	}
	inv.HasPO = len(inv.PONumbers) > 0
	if inv.ExtractedFields == nil {
		inv.ExtractedFields = []domain.ExtractedField{}
	}
	sort.SliceStable(inv.ExtractedFields, func(i, j int) bool {
		return inv.ExtractedFields[i].Key() < inv.ExtractedFields[j].Key()
	})
	inv.Recalculate()
}

func senderDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func dedupe(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, s := range parts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
