package detectors

import (
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

const reasonNoRiskKeyword = "no-risk-keyword"

// FastClassifier is the keyword-tier pass. It checks the HIGH, MEDIUM and LOW
// tiers in that order and reports the first tier with a substring match.
type FastClassifier struct {
	tiers []KeywordTier
}

// NewFastClassifier creates a classifier over the lexicon's keyword tiers.
func NewFastClassifier(lex *Lexicon) *FastClassifier {
	return &FastClassifier{tiers: lex.Tiers}
}

// Classify never returns an error; the signature satisfies engine.FastPass.
func (c *FastClassifier) Classify(text string) (engine.DetectionResult, error) {
	start := time.Now()
	normalized := normalizeText(text)

	level := engine.RiskLow
	reason := reasonNoRiskKeyword
	for _, tier := range c.tiers {
		if phrase, ok := firstMatch(normalized, tier.Phrases); ok {
			level = tier.Level
			reason = tier.Level.String() + "-keyword:" + phrase
			break
		}
	}

	return engine.DetectionResult{
		Level:        level,
		Reasons:      []string{reason},
		NLULatencyMs: engine.LatencyMillis(time.Since(start)),
	}, nil
}
