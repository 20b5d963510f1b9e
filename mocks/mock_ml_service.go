package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ivms/internal/port"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req port.ExtractionRequest) (*port.ExtractionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ExtractionResult), args.Error(1)
}

// MockMatcher is a mock implementation of port.Matcher.
type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) Match(ctx context.Context, req port.MatchRequest) (*port.MatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.MatchResult), args.Error(1)
}

// MockFraudSignal is a mock implementation of port.FraudSignal.
type MockFraudSignal struct {
	mock.Mock
}

func (m *MockFraudSignal) Signal(ctx context.Context, req port.FraudSignalRequest) (*port.FraudSignalResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.FraudSignalResult), args.Error(1)
}

// MockCodingAdvisor is a mock implementation of port.CodingAdvisor.
type MockCodingAdvisor struct {
	mock.Mock
}

func (m *MockCodingAdvisor) Suggest(ctx context.Context, req port.CodingRequest) (*port.CodingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.CodingResult), args.Error(1)
}

// MockTextRecognizer is a mock implementation of port.TextRecognizer.
type MockTextRecognizer struct {
	mock.Mock
}

func (m *MockTextRecognizer) Recognize(ctx context.Context, content []byte, contentType string) (*port.RecognizedText, error) {
	args := m.Called(ctx, content, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.RecognizedText), args.Error(1)
}
