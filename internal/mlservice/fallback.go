package mlservice

import (
	"context"

	"ivms/internal/domain"
	"ivms/internal/port"
)

// Fallback answers every ML capability deterministically without the
// network: no enhancement, no match, a neutral fraud signal and no coding
// suggestions.
type Fallback struct{}

var (
	_ port.Extractor     = Fallback{}
	_ port.Matcher       = Fallback{}
	_ port.FraudSignal   = Fallback{}
	_ port.CodingAdvisor = Fallback{}
)

// Extract reports that nothing could be enhanced.
func (Fallback) Extract(_ context.Context, _ port.ExtractionRequest) (*port.ExtractionResult, error) {
	return &port.ExtractionResult{Success: false}, nil
}

// Match returns a no-match result covering the whole invoice total.
func (Fallback) Match(_ context.Context, req port.MatchRequest) (*port.MatchResult, error) {
	mt := domain.MatchTypeThreeWay
	if len(req.PONumbers) > 1 {
		mt = domain.MatchTypeNWay
	}
	return &port.MatchResult{
		MatchType:       mt,
		Status:          domain.MatchStatusNoMatch,
		Score:           0,
		UnmatchedAmount: req.Total,
		Source:          domain.MatchSourceFallback,
	}, nil
}

// Signal returns a zero score marked as degraded.
func (Fallback) Signal(_ context.Context, _ port.FraudSignalRequest) (*port.FraudSignalResult, error) {
	return &port.FraudSignalResult{Score: 0, Degraded: true}, nil
}

// Suggest returns no suggestions, leaving the category defaults to the caller.
func (Fallback) Suggest(_ context.Context, _ port.CodingRequest) (*port.CodingResult, error) {
	return &port.CodingResult{}, nil
}
