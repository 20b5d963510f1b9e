// Package mlservice talks to the external ML service and degrades to
// deterministic fallbacks when it misbehaves.
package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ivms/internal/config"
	"ivms/internal/domain"
	"ivms/internal/port"
)

const (
	pathExtract = "/invoice/extract"
	pathMatch   = "/invoice/match"
	pathFraud   = "/invoice/detect-fraud"
	pathCoding  = "/invoice/suggest-gl-coding"
	pathHealth  = "/health"
)

// Client is the live HTTP client of the ML service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client from the ML service config.
func NewClient(cfg *config.MLServiceConfig) *Client {
	return NewClientWithEndpoint(cfg, cfg.BaseURL)
}

// NewClientWithEndpoint creates a client pointing at a custom base URL (for testing).
func NewClientWithEndpoint(cfg *config.MLServiceConfig, baseURL string) *Client {
	// Per-call deadlines come from the caller's context; this is a backstop.
	timeout := time.Duration(cfg.ExtractTimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var (
	_ port.Extractor     = (*Client)(nil)
	_ port.Matcher       = (*Client)(nil)
	_ port.FraudSignal   = (*Client)(nil)
	_ port.CodingAdvisor = (*Client)(nil)
)

// wireField is how the service represents one extracted field.
type wireField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type wireLineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

type extractResponse struct {
	Success          bool               `json:"success"`
	Fields           []wireField        `json:"fields"`
	Confidence       float64            `json:"confidence"`
	LineItems        []wireLineItem     `json:"line_items"`
	FieldConfidences map[string]float64 `json:"field_confidences"`
	Error            string             `json:"error"`
}

// Extract requests enhanced extraction for the referenced files.
func (c *Client) Extract(ctx context.Context, req port.ExtractionRequest) (*port.ExtractionResult, error) {
	var resp extractResponse
	if err := c.post(ctx, pathExtract, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &port.ExtractionResult{Success: false}, nil
	}

	out := &port.ExtractionResult{
		Success:          true,
		Confidence:       resp.Confidence,
		FieldConfidences: resp.FieldConfidences,
	}
	for _, f := range resp.Fields {
		kind := domain.ParseFieldKind(f.Name)
		field := domain.ExtractedField{Kind: kind, Value: f.Value, Confidence: f.Confidence, Method: domain.ExtractionOCR}
		if kind == domain.FieldOther {
			field.Name = f.Name
		}
		out.Fields = append(out.Fields, field)
	}
	for i, li := range resp.LineItems {
		out.LineItems = append(out.LineItems, domain.LineItem{
			LineNumber:  i + 1,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.Total,
			TaxAmount:   li.TaxAmount,
		})
	}
	return out, nil
}

// Match requests semantic PO/GRN matching.
func (c *Client) Match(ctx context.Context, req port.MatchRequest) (*port.MatchResult, error) {
	var resp port.MatchResult
	if err := c.post(ctx, pathMatch, req, &resp); err != nil {
		return nil, err
	}
	resp.Source = domain.MatchSourceService
	return &resp, nil
}

// Signal requests an external fraud score.
func (c *Client) Signal(ctx context.Context, req port.FraudSignalRequest) (*port.FraudSignalResult, error) {
	var resp port.FraudSignalResult
	if err := c.post(ctx, pathFraud, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Suggest requests GL coding suggestions.
func (c *Client) Suggest(ctx context.Context, req port.CodingRequest) (*port.CodingResult, error) {
	var resp port.CodingResult
	if err := c.post(ctx, pathCoding, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ML service health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ML service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ML service %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("ML service error on %s (status %d): %s", path, resp.StatusCode, truncate(string(respBody), 300))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return NewRateLimitError(path, baseErr, retryAfter)
		}
		return baseErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
