package detectors

import (
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// SemanticEvaluator is the second pass. It looks at phrase combinations:
// a high-intent phrase together with an immediacy marker is EXTREME, intent
// alone is HIGH, moderate distress is MEDIUM.
type SemanticEvaluator struct {
	highIntent       []string
	immediacy        []string
	moderateDistress []string
}

// NewSemanticEvaluator creates an evaluator over the lexicon's semantic lists.
func NewSemanticEvaluator(lex *Lexicon) *SemanticEvaluator {
	return &SemanticEvaluator{
		highIntent:       lex.HighIntent,
		immediacy:        lex.Immediacy,
		moderateDistress: lex.ModerateDistress,
	}
}

// Evaluate never returns an error; the signature satisfies engine.SemanticPass.
func (e *SemanticEvaluator) Evaluate(text string) (engine.DetectionResult, error) {
	start := time.Now()
	normalized := normalizeText(text)

	level := engine.RiskLow
	reason := "semantic-none"

	if intent, ok := firstMatch(normalized, e.highIntent); ok {
		if marker, ok := firstMatch(normalized, e.immediacy); ok {
			level = engine.RiskExtreme
			reason = "semantic-extreme:" + intent + "+" + marker
		} else {
			level = engine.RiskHigh
			reason = "semantic-high:" + intent
		}
	} else if phrase, ok := firstMatch(normalized, e.moderateDistress); ok {
		level = engine.RiskMedium
		reason = "semantic-medium:" + phrase
	}

	return engine.DetectionResult{
		Level:             level,
		Reasons:           []string{reason},
		SemanticLatencyMs: engine.LatencyMillis(time.Since(start)),
	}, nil
}
