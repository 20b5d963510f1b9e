package app_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivms/internal/app"
	"ivms/internal/config"
	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/fraud"
	"ivms/internal/service"
)

func TestHeuristics_ZeroValuesKeepDefaults(t *testing.T) {
	var h config.HeuristicsConfig

	assert.Equal(t, duplicate.DefaultConfig(), app.DuplicateConfig(h))
	assert.Equal(t, fraud.DefaultScorerConfig(), app.ScorerConfig(h))
	assert.Equal(t, fraud.DefaultWeights(), app.AnalyzerConfig(h).Weights)

	m := app.MatchingConfig(h, config.MLServiceConfig{})
	assert.True(t, domain.DefaultTolerance().PricePercent.Equal(m.Tolerance.PricePercent))
	assert.Equal(t, 30*time.Second, m.Timeout)

	p := app.PipelineConfig(&config.Config{})
	def := service.DefaultPipelineConfig()
	assert.Equal(t, def.LowConfidence, p.LowConfidence)
	assert.True(t, def.AutoApproveLimit.Equal(p.AutoApproveLimit))
}

func TestHeuristics_OverridesApply(t *testing.T) {
	h := config.HeuristicsConfig{
		DuplicateWindowDays:         14,
		DuplicateThreshold:          0.75,
		DuplicateExceptionThreshold: 0.95,
		FraudSuspiciousScore:        40,
		FraudExceptionScore:         60,
		WeightDuplicate:             0.4,
		WeightPrice:                 0.2,
		WeightRush:                  0.15,
		WeightRound:                 0.05,
		WeightNewVendor:             0.1,
		WeightFrequency:             0.1,
		PriceTolerancePct:           3,
		QuantityTolerancePct:        4,
		AmountTolerance:             25,
		LowConfidence:               0.9,
		MatchFailScore:              0.7,
		AutoApproveLimit:            5000,
		MaxAgeDays:                  120,
		ShortTermsDays:              10,
	}

	d := app.DuplicateConfig(h)
	assert.Equal(t, 14, d.WindowDays)
	assert.InDelta(t, 0.75, d.Threshold, 1e-9)

	assert.InDelta(t, 40, app.ScorerConfig(h).SuspiciousScore, 1e-9)

	w := app.AnalyzerConfig(h).Weights
	require.NoError(t, w.Validate())
	assert.InDelta(t, 0.4, w.Duplicate, 1e-9)

	m := app.MatchingConfig(h, config.MLServiceConfig{MatchTimeoutSecs: 5})
	assert.True(t, decimal.NewFromInt(3).Equal(m.Tolerance.PricePercent))
	assert.True(t, decimal.NewFromInt(4).Equal(m.Tolerance.QuantityPercent))
	assert.True(t, decimal.NewFromInt(25).Equal(m.Tolerance.AmountAbsolute))
	assert.Equal(t, 5*time.Second, m.Timeout)

	a := app.AnomalyConfig(h)
	assert.Equal(t, 120, a.MaxAgeDays)
	assert.Equal(t, 10, a.ShortTermsDays)

	p := app.PipelineConfig(&config.Config{
		Heuristics: h,
		Lock:       config.LockConfig{Wait: 5 * time.Second},
		Queue:      config.QueueConfig{Concurrency: 8},
	})
	assert.InDelta(t, 0.9, p.LowConfidence, 1e-9)
	assert.InDelta(t, 0.95, p.DuplicateExceptionAbove, 1e-9)
	assert.InDelta(t, 60, p.FraudExceptionAbove, 1e-9)
	assert.InDelta(t, 0.7, p.MatchFailBelow, 1e-9)
	assert.True(t, decimal.NewFromInt(5000).Equal(p.AutoApproveLimit))
	assert.Equal(t, 5*time.Second, p.LockWait)
	assert.Equal(t, 8, p.BatchConcurrency)
}

func TestHeuristics_BadWeightsAreRejectedByAnalyzer(t *testing.T) {
	cfg := app.AnalyzerConfig(config.HeuristicsConfig{WeightDuplicate: 0.5, WeightPrice: 0.1})

	_, err := fraud.NewAnalyzer(nil, nil, nil, cfg, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidWeights)
}

func TestWorkerConfig(t *testing.T) {
	w := app.WorkerConfig(config.QueueConfig{PollIntervalSecs: 3, Concurrency: 4})

	assert.Equal(t, 3*time.Second, w.PollInterval)
	assert.Equal(t, 4, w.Concurrency)
}
