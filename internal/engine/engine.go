package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Reasons appended by the detector itself.
const (
	ReasonOverrideSignal        = "override-signal"
	ReasonJokeDisclaimerIgnored = "joke-disclaimer-ignored"
	reasonDetectorErrorPrefix   = "detector-error:"
)

var (
	ErrInvalidPassLevel = errors.New("pass returned an invalid risk level")
	ErrInvalidOverride  = errors.New("override signal has an invalid risk level")
)

// SafetyDetector runs the fast pass, conditionally the semantic pass, merges
// an optional override signal and enforces the joke rule.
//
// Detect never returns an error: every failure inside the pipeline, including
// a panic in a pass, is converted into a fail-closed RiskHigh result here and
// nowhere else.
type SafetyDetector struct {
	fast     FastPass
	semantic SemanticPass
	logger   *zap.Logger
}

// NewSafetyDetector creates a detector over the given passes.
func NewSafetyDetector(fast FastPass, semantic SemanticPass, logger *zap.Logger) *SafetyDetector {
	return &SafetyDetector{
		fast:     fast,
		semantic: semantic,
		logger:   logger,
	}
}

// Detect classifies text, optionally merging a caller-supplied override signal.
//
// Steps:
//  1. Fast pass.
//  2. Fast level >= HIGH: skip the semantic pass (SemanticLatencyMs stays 0).
//  3. Otherwise semantic pass; level = max(fast, semantic), reasons concatenated.
//  4. Override above the fused level is adopted.
//  5. A joking override at HIGH/EXTREME forces at least that level.
//  6. Any error or panic maps to the fail-closed result.
func (d *SafetyDetector) Detect(text string, override *DialogueRiskSignal) (result DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = d.failClosed(fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := d.detect(text, override)
	if err != nil {
		return d.failClosed(err)
	}
	return res
}

func (d *SafetyDetector) detect(text string, override *DialogueRiskSignal) (DetectionResult, error) {
	fast, err := d.fast.Classify(text)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("fast pass: %w", err)
	}
	if !fast.Level.Valid() {
		return DetectionResult{}, fmt.Errorf("fast pass: %w", ErrInvalidPassLevel)
	}

	result := DetectionResult{
		Level:        fast.Level,
		Reasons:      append(make([]string, 0, len(fast.Reasons)+2), fast.Reasons...),
		NLULatencyMs: fast.NLULatencyMs,
	}

	if fast.Level >= RiskHigh {
		result.Source = SourceShortCircuit
	} else {
		sem, err := d.semantic.Evaluate(text)
		if err != nil {
			return DetectionResult{}, fmt.Errorf("semantic pass: %w", err)
		}
		if !sem.Level.Valid() {
			return DetectionResult{}, fmt.Errorf("semantic pass: %w", ErrInvalidPassLevel)
		}
		result.Level = MaxLevel(fast.Level, sem.Level)
		result.Reasons = append(result.Reasons, sem.Reasons...)
		result.SemanticLatencyMs = sem.SemanticLatencyMs
		result.Source = SourceFused
	}

	if override == nil {
		return result, nil
	}
	if !override.Level.Valid() {
		return DetectionResult{}, ErrInvalidOverride
	}

	if override.Level > result.Level {
		result.Level = override.Level
		result.Reasons = append(result.Reasons, ReasonOverrideSignal)
	}

	// A humor disclaimer never downgrades risk.
	if override.IsJoke && override.Level >= RiskHigh {
		result.Level = MaxLevel(result.Level, override.Level)
		result.Reasons = append(result.Reasons, ReasonJokeDisclaimerIgnored)
	}

	return result, nil
}

func (d *SafetyDetector) failClosed(err error) DetectionResult {
	d.logger.Error("safety detector failed closed", zap.Error(err))
	return DetectionResult{
		Level:      RiskHigh,
		Source:     SourceFailClosed,
		Reasons:    []string{reasonDetectorErrorPrefix + err.Error()},
		FailClosed: true,
	}
}
