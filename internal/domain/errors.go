package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("resource not found")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrVendorNotFound         = errors.New("vendor not found")
	ErrMatchRecordNotFound    = errors.New("match record not found")
	ErrExceptionNotFound      = errors.New("exception not found")
	ErrInvalidChannel         = errors.New("invalid intake channel")
	ErrMissingRequiredFields  = errors.New("missing required fields")
	ErrUnsupportedFileType    = errors.New("unsupported file type")
	ErrUploadFailed           = errors.New("file upload to storage failed")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("invoice was modified concurrently")
	ErrLockTimeout            = errors.New("timed out acquiring invoice lock")
	ErrExceptionClosed        = errors.New("exception already closed")
	ErrUnknownExceptionType   = errors.New("unknown exception type")
	ErrInvalidWeights         = errors.New("risk weights must sum to 1.0")
)

// MissingRequiredFieldsError lists the structured-payload fields that were absent.
type MissingRequiredFieldsError struct {
	Fields []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredFields, strings.Join(e.Fields, ", "))
}

func (e *MissingRequiredFieldsError) Unwrap() error {
	return ErrMissingRequiredFields
}

// IsValidationError reports whether err is a caller-facing validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidChannel) ||
		errors.Is(err, ErrMissingRequiredFields) ||
		errors.Is(err, ErrVendorNotFound) ||
		errors.Is(err, ErrUnsupportedFileType)
}
