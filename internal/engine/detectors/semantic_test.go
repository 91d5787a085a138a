package detectors

import (
	"testing"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

func TestSemanticEvaluator(t *testing.T) {
	e := NewSemanticEvaluator(newTestLexicon(t))

	tests := []struct {
		name   string
		text   string
		level  engine.RiskLevel
		reason string
	}{
		{"intent with immediacy", "I'm going to end it all tonight", engine.RiskExtreme, "semantic-extreme:end it all+tonight"},
		{"intent with plan", "I have a plan to end my life", engine.RiskExtreme, "semantic-extreme:end my life+have a plan"},
		{"intent only", "Sometimes I don't want to be alive", engine.RiskHigh, "semantic-high:don't want to be alive"},
		{"curly apostrophe intent", "I don’t want to be alive", engine.RiskHigh, "semantic-high:don't want to be alive"},
		{"scenario c", "I can't handle this and nothing matters", engine.RiskMedium, "semantic-medium:can't handle this"},
		{"trapped", "I feel so trapped at work", engine.RiskMedium, "semantic-medium:trapped"},
		{"immediacy alone", "I need to finish this tonight", engine.RiskLow, "semantic-none"},
		{"neutral", "Had pasta for dinner", engine.RiskLow, "semantic-none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Evaluate(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Level != tt.level {
				t.Errorf("expected %s, got %s", tt.level, res.Level)
			}
			if len(res.Reasons) != 1 || res.Reasons[0] != tt.reason {
				t.Errorf("expected [%s], got %v", tt.reason, res.Reasons)
			}
			if res.NLULatencyMs != 0 {
				t.Errorf("semantic pass must not set nlu latency, got %f", res.NLULatencyMs)
			}
		})
	}
}
