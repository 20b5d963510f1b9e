package domain

// FileType represents the allowed file types for attached invoice documents.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeTIFF FileType = "tiff"
	FileTypeXML  FileType = "xml"
)

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
	"image/tiff":      FileTypeTIFF,
	"application/xml": FileTypeXML,
	"text/xml":        FileTypeXML,
}

// IsImage reports whether the file type is a raster image.
func (f FileType) IsImage() bool {
	return f == FileTypeJPG || f == FileTypePNG || f == FileTypeTIFF
}

// Channel identifies the intake route an invoice arrived through.
type Channel string

const (
	ChannelPortal Channel = "portal"
	ChannelManual Channel = "manual"
	ChannelEmail  Channel = "email"
	ChannelAPI    Channel = "api"
	ChannelEDI    Channel = "edi"
	ChannelMobile Channel = "mobile"
	ChannelScan   Channel = "scan"
)

// ValidChannels enumerates every accepted intake channel.
var ValidChannels = map[Channel]bool{
	ChannelPortal: true,
	ChannelManual: true,
	ChannelEmail:  true,
	ChannelAPI:    true,
	ChannelEDI:    true,
	ChannelMobile: true,
	ChannelScan:   true,
}

// IsStructured reports whether the channel delivers machine-readable payloads.
func (c Channel) IsStructured() bool {
	return c == ChannelAPI || c == ChannelEDI
}

// InvoiceStatus is the pipeline state of an invoice.
type InvoiceStatus string

const (
	StatusSubmitted       InvoiceStatus = "submitted"
	StatusProcessing      InvoiceStatus = "processing"
	StatusExtracted       InvoiceStatus = "extracted"
	StatusMatching        InvoiceStatus = "matching"
	StatusMatched         InvoiceStatus = "matched"
	StatusNoMatch         InvoiceStatus = "no_match"
	StatusPendingReview   InvoiceStatus = "pending_review"
	StatusPendingApproval InvoiceStatus = "pending_approval"
	StatusApproved        InvoiceStatus = "approved"
	StatusException       InvoiceStatus = "exception"
	StatusPaid            InvoiceStatus = "paid"
	StatusRejected        InvoiceStatus = "rejected"
	StatusCancelled       InvoiceStatus = "cancelled"
	StatusDisputed        InvoiceStatus = "disputed"
	StatusArchived        InvoiceStatus = "archived"
)

// Sub-statuses recorded alongside exception and review states.
const (
	SubStatusDuplicate        = "duplicate"
	SubStatusFraudSuspected   = "fraud_suspected"
	SubStatusMatchFailed      = "match_failed"
	SubStatusAnomaly          = "anomaly"
	SubStatusProcessingFailed = "processing_failed"
	SubStatusAutoApproved     = "auto_approved"
	SubStatusAwaitingApproval = "awaiting_approval"

	SubStatusLowConfidenceCapture = "low_confidence_capture"
	SubStatusIntakeFailed         = "intake_failed"
)

// DocumentType distinguishes invoices from credit memos.
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "invoice"
	DocumentTypeCreditMemo DocumentType = "credit_memo"
)

// ExtractionMethod records how a field value was obtained.
type ExtractionMethod string

const (
	ExtractionOCR      ExtractionMethod = "ocr"
	ExtractionTemplate ExtractionMethod = "template"
	ExtractionManual   ExtractionMethod = "manual"
	ExtractionEnhanced ExtractionMethod = "enhanced"
)

// FieldKind is the closed set of known extracted-field kinds. FieldOther
// carries any name the OCR layer produces that is not listed here.
type FieldKind string

const (
	FieldInvoiceNumber FieldKind = "invoice_number"
	FieldInvoiceDate   FieldKind = "invoice_date"
	FieldDueDate       FieldKind = "due_date"
	FieldPONumber      FieldKind = "po_number"
	FieldVendorName    FieldKind = "vendor_name"
	FieldVendorEmail   FieldKind = "vendor_email"
	FieldVendorPhone   FieldKind = "vendor_phone"
	FieldTotalAmount   FieldKind = "total_amount"
	FieldTaxAmount     FieldKind = "tax_amount"
	FieldSubtotal      FieldKind = "subtotal"
	FieldBankAccount   FieldKind = "bank_account"
	FieldRoutingNumber FieldKind = "routing_number"
	FieldOther         FieldKind = "other"
)

var knownFieldKinds = map[FieldKind]bool{
	FieldInvoiceNumber: true,
	FieldInvoiceDate:   true,
	FieldDueDate:       true,
	FieldPONumber:      true,
	FieldVendorName:    true,
	FieldVendorEmail:   true,
	FieldVendorPhone:   true,
	FieldTotalAmount:   true,
	FieldTaxAmount:     true,
	FieldSubtotal:      true,
	FieldBankAccount:   true,
	FieldRoutingNumber: true,
}

// ParseFieldKind maps a raw field name onto a known kind, or FieldOther.
func ParseFieldKind(name string) FieldKind {
	if k := FieldKind(name); knownFieldKinds[k] {
		return k
	}
	return FieldOther
}

// Category is the spend category used for GL defaults.
type Category string

const (
	CategoryGoods        Category = "goods"
	CategoryServices     Category = "services"
	CategorySubscription Category = "subscription"
	CategoryUtilities    Category = "utilities"
	CategoryTravel       Category = "travel"
	CategoryOther        Category = "other"
)

// Priority is the handling priority assigned at intake.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// MatchType describes how an invoice was reconciled.
type MatchType string

const (
	MatchTypeThreeWay MatchType = "three_way"
	MatchTypeNWay     MatchType = "n_way"
	MatchTypeNonPO    MatchType = "non_po"
)

// MatchStatus is the outcome of a reconciliation attempt.
type MatchStatus string

const (
	MatchStatusPending      MatchStatus = "pending"
	MatchStatusMatched      MatchStatus = "matched"
	MatchStatusPartialMatch MatchStatus = "partial_match"
	MatchStatusNoMatch      MatchStatus = "no_match"
)

// MatchSource records which implementation produced a match record.
type MatchSource string

const (
	MatchSourceService  MatchSource = "service"
	MatchSourceLocal    MatchSource = "local"
	MatchSourceFallback MatchSource = "fallback"
)

// MismatchType classifies a reconciliation discrepancy.
type MismatchType string

const (
	MismatchPrice       MismatchType = "price"
	MismatchQuantity    MismatchType = "quantity"
	MismatchAmount      MismatchType = "amount"
	MismatchPONotFound  MismatchType = "po_not_found"
	MismatchGRNNotFound MismatchType = "grn_not_found"
	MismatchVendor      MismatchType = "vendor"
)

// Severity is shared by mismatch reasons, issues and exceptions.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityWarning  Severity = "warning"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IsBlocking reports whether a mismatch of this severity must raise an exception.
func (s Severity) IsBlocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// ExceptionType is the closed taxonomy of exception records.
type ExceptionType string

const (
	ExceptionDuplicateInvoice      ExceptionType = "duplicate_invoice"
	ExceptionFraudSuspected        ExceptionType = "fraud_suspected"
	ExceptionPONotFound            ExceptionType = "po_not_found"
	ExceptionGRNNotFound           ExceptionType = "grn_not_found"
	ExceptionQuantityMismatch      ExceptionType = "quantity_mismatch"
	ExceptionPriceMismatch         ExceptionType = "price_mismatch"
	ExceptionAmountMismatch        ExceptionType = "amount_mismatch"
	ExceptionInvalidTaxCalculation ExceptionType = "invalid_tax_calculation"
	ExceptionBankAccountChange     ExceptionType = "bank_account_change"
	ExceptionAnomalyDetected       ExceptionType = "anomaly_detected"
	ExceptionMatchFailed           ExceptionType = "match_failed"
	ExceptionProcessingFailed      ExceptionType = "processing_failed"
)

// ExceptionStatus tracks the resolution lifecycle of an exception.
type ExceptionStatus string

const (
	ExceptionStatusOpen       ExceptionStatus = "open"
	ExceptionStatusInProgress ExceptionStatus = "in_progress"
	ExceptionStatusResolved   ExceptionStatus = "resolved"
	ExceptionStatusDismissed  ExceptionStatus = "dismissed"
)

// RiskLevel buckets the rich fraud model score.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Audit actions written by the pipeline.
const (
	AuditInvoiceSubmitted   = "invoice_submitted"
	AuditStatusChanged      = "status_changed"
	AuditExtractionEnhanced = "extraction_enhanced"
	AuditDuplicateChecked   = "duplicate_checked"
	AuditFraudScored        = "fraud_scored"
	AuditMatched            = "matched"
	AuditTaxValidated       = "tax_validated"
	AuditCodingApplied      = "coding_applied"
	AuditCodingSuggested    = "coding_suggested"
	AuditAnomalyDetected    = "anomaly_detected"
	AuditExceptionCreated   = "exception_created"
	AuditProcessingFailed   = "processing_failed"
)

// SystemActor is the actor recorded for pipeline-driven audit entries.
const SystemActor = "system"
