// Package ocr recognizes text on attached invoice documents.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"ivms/internal/config"
	"ivms/internal/port"
)

// MaxFileSizeBytes is the largest document sent for synchronous recognition.
const MaxFileSizeBytes = 20 * 1024 * 1024

var (
	ErrFileTooLarge  = errors.New("document too large for recognition")
	ErrEmptyDocument = errors.New("no text recognized")
)

// VisionRecognizer implements port.TextRecognizer using Google Cloud Vision.
type VisionRecognizer struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionRecognizer creates a Vision client. Inline credentials win over a
// credentials file; with neither, application default credentials are used.
func NewVisionRecognizer(ctx context.Context, cfg *config.OCRConfig) (*VisionRecognizer, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &VisionRecognizer{client: client}, nil
}

var _ port.TextRecognizer = (*VisionRecognizer)(nil)

// Recognize runs document text detection. PDFs and TIFFs go through the
// file API, single images through the image API.
func (v *VisionRecognizer) Recognize(ctx context.Context, content []byte, contentType string) (*port.RecognizedText, error) {
	if len(content) > MaxFileSizeBytes {
		return nil, fmt.Errorf("ocr.Recognize: %w: %d bytes", ErrFileTooLarge, len(content))
	}

	feature := []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}

	switch contentType {
	case "application/pdf", "image/tiff":
		resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
			Requests: []*visionpb.AnnotateFileRequest{{
				InputConfig: &visionpb.InputConfig{Content: content, MimeType: contentType},
				Features:    feature,
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("ocr.Recognize: vision call failed: %w", err)
		}
		if len(resp.Responses) == 0 {
			return nil, fmt.Errorf("ocr.Recognize: %w", ErrEmptyDocument)
		}
		return fromFileResponse(resp.Responses[0])

	default:
		resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{{
				Image:    &visionpb.Image{Content: content},
				Features: feature,
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("ocr.Recognize: vision call failed: %w", err)
		}
		if len(resp.Responses) == 0 {
			return nil, fmt.Errorf("ocr.Recognize: %w", ErrEmptyDocument)
		}
		return fromImageResponses(resp.Responses)
	}
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func fromFileResponse(fr *visionpb.AnnotateFileResponse) (*port.RecognizedText, error) {
	if fr.Error != nil {
		return nil, fmt.Errorf("ocr.Recognize: vision error: %s", fr.Error.Message)
	}
	return fromImageResponses(fr.Responses)
}

// fromImageResponses joins page text and averages the page confidences
// Vision reports on each full-text annotation.
func fromImageResponses(pages []*visionpb.AnnotateImageResponse) (*port.RecognizedText, error) {
	var text strings.Builder
	var confSum float64
	var confCount int

	for i, page := range pages {
		if page.Error != nil {
			return nil, fmt.Errorf("ocr.Recognize: page %d: %s", i+1, page.Error.Message)
		}
		fta := page.FullTextAnnotation
		if fta == nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(fta.Text)
		for _, p := range fta.Pages {
			if p.Confidence > 0 {
				confSum += float64(p.Confidence)
				confCount++
			}
		}
	}

	out := text.String()
	if strings.TrimSpace(out) == "" {
		return nil, fmt.Errorf("ocr.Recognize: %w", ErrEmptyDocument)
	}

	var conf float64
	if confCount > 0 {
		conf = confSum / float64(confCount)
	}
	return &port.RecognizedText{Text: out, Confidence: conf, Pages: len(pages)}, nil
}
