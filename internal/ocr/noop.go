package ocr

import (
	"context"

	"ivms/internal/port"
)

// NoopRecognizer recognizes nothing. Used when OCR is disabled; invoices
// keyed by hand are unaffected, scanned ones land with zero confidence and
// go to enhanced extraction.
type NoopRecognizer struct{}

var _ port.TextRecognizer = NoopRecognizer{}

func (NoopRecognizer) Recognize(_ context.Context, _ []byte, _ string) (*port.RecognizedText, error) {
	return &port.RecognizedText{}, nil
}
