package app

import (
	"time"

	"github.com/shopspring/decimal"

	"ivms/internal/anomaly"
	"ivms/internal/config"
	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/fraud"
	"ivms/internal/matching"
	"ivms/internal/service"
)

// DuplicateConfig converts the configured duplicate window and threshold.
func DuplicateConfig(h config.HeuristicsConfig) duplicate.Config {
	cfg := duplicate.DefaultConfig()
	if h.DuplicateWindowDays > 0 {
		cfg.WindowDays = h.DuplicateWindowDays
	}
	if h.DuplicateThreshold > 0 {
		cfg.Threshold = h.DuplicateThreshold
	}
	return cfg
}

// ScorerConfig converts the inline fraud scorer settings.
func ScorerConfig(h config.HeuristicsConfig) fraud.ScorerConfig {
	cfg := fraud.DefaultScorerConfig()
	if h.FraudSuspiciousScore > 0 {
		cfg.SuspiciousScore = h.FraudSuspiciousScore
	}
	return cfg
}

// AnalyzerConfig converts the analyzer weights. Validation happens in
// fraud.NewAnalyzer.
func AnalyzerConfig(h config.HeuristicsConfig) fraud.AnalyzerConfig {
	cfg := fraud.DefaultAnalyzerConfig()
	w := fraud.Weights{
		Duplicate: h.WeightDuplicate,
		Price:     h.WeightPrice,
		Rush:      h.WeightRush,
		Round:     h.WeightRound,
		NewVendor: h.WeightNewVendor,
		Frequency: h.WeightFrequency,
	}
	if w != (fraud.Weights{}) {
		cfg.Weights = w
	}
	return cfg
}

// MatchingConfig converts the match tolerance; timeout is the ML match timeout.
func MatchingConfig(h config.HeuristicsConfig, ml config.MLServiceConfig) matching.Config {
	cfg := matching.DefaultConfig()
	if h.PriceTolerancePct > 0 {
		cfg.Tolerance.PricePercent = decimal.NewFromFloat(h.PriceTolerancePct)
	}
	if h.QuantityTolerancePct > 0 {
		cfg.Tolerance.QuantityPercent = decimal.NewFromFloat(h.QuantityTolerancePct)
	}
	if h.AmountTolerance > 0 {
		cfg.Tolerance.AmountAbsolute = decimal.NewFromFloat(h.AmountTolerance)
	}
	if ml.MatchTimeoutSecs > 0 {
		cfg.Timeout = time.Duration(ml.MatchTimeoutSecs) * time.Second
	}
	return cfg
}

// AnomalyConfig converts the anomaly thresholds.
func AnomalyConfig(h config.HeuristicsConfig) anomaly.Config {
	cfg := anomaly.DefaultConfig()
	if h.MaxAgeDays > 0 {
		cfg.MaxAgeDays = h.MaxAgeDays
	}
	if h.ShortTermsDays > 0 {
		cfg.ShortTermsDays = h.ShortTermsDays
	}
	cfg.HighValue = domain.HighValueThreshold
	return cfg
}

// PipelineConfig converts the orchestrator thresholds.
func PipelineConfig(cfg *config.Config) service.PipelineConfig {
	h := cfg.Heuristics
	out := service.DefaultPipelineConfig()
	if h.LowConfidence > 0 {
		out.LowConfidence = h.LowConfidence
	}
	if h.DuplicateExceptionThreshold > 0 {
		out.DuplicateExceptionAbove = h.DuplicateExceptionThreshold
	}
	if h.FraudExceptionScore > 0 {
		out.FraudExceptionAbove = h.FraudExceptionScore
	}
	if h.MatchFailScore > 0 {
		out.MatchFailBelow = h.MatchFailScore
	}
	if h.AutoApproveLimit > 0 {
		out.AutoApproveLimit = decimal.NewFromFloat(h.AutoApproveLimit)
	}
	if cfg.Lock.Wait > 0 {
		out.LockWait = cfg.Lock.Wait
	}
	if cfg.Queue.Concurrency > 0 {
		out.BatchConcurrency = cfg.Queue.Concurrency
	}
	return out
}

// WorkerConfig converts the queue settings.
func WorkerConfig(q config.QueueConfig) service.WorkerConfig {
	return service.WorkerConfig{
		PollInterval: time.Duration(q.PollIntervalSecs) * time.Second,
		Concurrency:  q.Concurrency,
	}
}
