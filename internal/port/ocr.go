package port

import "context"

// RecognizedText is raw OCR output for one document.
type RecognizedText struct {
	Text       string
	Confidence float64
	Pages      int
}

// TextRecognizer turns document bytes into text and an overall confidence.
type TextRecognizer interface {
	Recognize(ctx context.Context, content []byte, contentType string) (*RecognizedText, error)
}
