package engine

// FastPass is the keyword-tier classifier run on every message.
// Implementations must be pure and return quickly.
type FastPass interface {
	// Classify returns the keyword-tier level for text and records
	// NLULatencyMs on the result.
	Classify(text string) (DetectionResult, error)
}

// SemanticPass is the costlier second pass, only run when the fast pass is
// inconclusive (below RiskHigh).
type SemanticPass interface {
	// Evaluate returns the pattern-combination level for text and records
	// SemanticLatencyMs on the result.
	Evaluate(text string) (DetectionResult, error)
}
