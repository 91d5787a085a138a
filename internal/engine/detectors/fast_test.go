package detectors

import (
	"testing"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

func newTestLexicon(t testing.TB) *Lexicon {
	t.Helper()
	lex, err := DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon: %v", err)
	}
	return lex
}

func TestFastClassifier_Tiers(t *testing.T) {
	c := NewFastClassifier(newTestLexicon(t))

	tests := []struct {
		name   string
		text   string
		level  engine.RiskLevel
		reason string
	}{
		{"scenario b", "I will kill myself tonight", engine.RiskHigh, "high-keyword:kill myself"},
		{"suicide", "I keep thinking about suicide", engine.RiskHigh, "high-keyword:suicide"},
		{"mixed case", "I WANT TO DIE", engine.RiskHigh, "high-keyword:want to die"},
		{"self harm", "I want to hurt myself again", engine.RiskMedium, "medium-keyword:hurt myself"},
		{"curly apostrophe", "I can’t go on like this", engine.RiskMedium, "medium-keyword:can't go on"},
		{"hopeless", "Everything feels hopeless", engine.RiskMedium, "medium-keyword:hopeless"},
		{"stressed", "Work has me stressed", engine.RiskLow, "low-keyword:stressed"},
		{"nothing", "I had a nice walk today", engine.RiskLow, reasonNoRiskKeyword},
		{"scenario c", "I can't handle this and nothing matters", engine.RiskLow, reasonNoRiskKeyword},
		{"empty", "", engine.RiskLow, reasonNoRiskKeyword},
		{"high beats medium", "I hurt myself and want to die", engine.RiskHigh, "high-keyword:want to die"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Classify(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Level != tt.level {
				t.Errorf("expected %s, got %s", tt.level, res.Level)
			}
			if len(res.Reasons) != 1 || res.Reasons[0] != tt.reason {
				t.Errorf("expected [%s], got %v", tt.reason, res.Reasons)
			}
			if res.SemanticLatencyMs != 0 {
				t.Errorf("fast pass must not set semantic latency, got %f", res.SemanticLatencyMs)
			}
		})
	}
}

func TestFastClassifier_EveryHighKeywordIsAtLeastHigh(t *testing.T) {
	lex := newTestLexicon(t)
	c := NewFastClassifier(lex)

	for _, phrase := range lex.Tiers[0].Phrases {
		for _, text := range []string{phrase, "lately " + phrase + " is all I think about", "  " + phrase + "!"} {
			res, _ := c.Classify(text)
			if res.Level < engine.RiskHigh {
				t.Errorf("text %q: expected >= high, got %s", text, res.Level)
			}
		}
	}
}

func BenchmarkFastClassifier(b *testing.B) {
	c := NewFastClassifier(newTestLexicon(b))
	text := "Honestly work has been a lot lately and I've been sleeping badly, but I'm managing okay."

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Classify(text)
	}
}
