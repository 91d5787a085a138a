package detectors

import (
	"strings"
	"testing"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"go.uber.org/zap"
)

func newPipeline(t testing.TB) *engine.SafetyDetector {
	t.Helper()
	lex := newTestLexicon(t)
	return engine.NewSafetyDetector(NewFastClassifier(lex), NewSemanticEvaluator(lex), zap.NewNop())
}

func TestPipeline_ShortCircuitCrisisStop(t *testing.T) {
	res := newPipeline(t).Detect("I will kill myself tonight", nil)

	if res.Level != engine.RiskHigh {
		t.Fatalf("expected HIGH, got %s", res.Level)
	}
	if res.Source != engine.SourceShortCircuit {
		t.Errorf("expected short-circuit source, got %s", res.Source)
	}
	if res.SemanticLatencyMs != 0 {
		t.Errorf("expected semantic latency 0, got %f", res.SemanticLatencyMs)
	}
	if res.Reasons[0] != "high-keyword:kill myself" {
		t.Errorf("unexpected reasons %v", res.Reasons)
	}

	action := engine.NewPolicyEngine(engine.DefaultPolicyMessages()).Resolve(res.Level)
	if action.Mode != engine.ModeCrisisStop || !action.StopCoaching || !action.NotifyOps || action.NotifyEmergencyContact {
		t.Errorf("unexpected action %+v", action)
	}
}

func TestPipeline_FusedSafetyPause(t *testing.T) {
	res := newPipeline(t).Detect("I can't handle this and nothing matters", nil)

	if res.Level != engine.RiskMedium {
		t.Fatalf("expected MEDIUM, got %s", res.Level)
	}
	if res.Source != engine.SourceFused {
		t.Errorf("expected fused source, got %s", res.Source)
	}
	if got := strings.Join(res.Reasons, ","); got != "no-risk-keyword,semantic-medium:can't handle this" {
		t.Errorf("unexpected reasons %s", got)
	}

	action := engine.NewPolicyEngine(engine.DefaultPolicyMessages()).Resolve(res.Level)
	if action.Mode != engine.ModeSafetyPause || !action.ShowHotline || action.StopCoaching {
		t.Errorf("unexpected action %+v", action)
	}
}

func TestPipeline_SemanticEscalatesToExtreme(t *testing.T) {
	res := newPipeline(t).Detect("I'm going to end it all right now", nil)
	if res.Level != engine.RiskExtreme {
		t.Errorf("expected EXTREME, got %s", res.Level)
	}
	if res.FailClosed {
		t.Error("unexpected fail-closed")
	}
}

func TestPipeline_JokeDisclaimerDoesNotDowngrade(t *testing.T) {
	res := newPipeline(t).Detect("lol I want to die, jk", &engine.DialogueRiskSignal{Level: engine.RiskExtreme, IsJoke: true})
	if res.Level != engine.RiskExtreme {
		t.Errorf("expected EXTREME, got %s", res.Level)
	}
	if res.Reasons[len(res.Reasons)-1] != engine.ReasonJokeDisclaimerIgnored {
		t.Errorf("expected joke reason last, got %v", res.Reasons)
	}
}

func BenchmarkPipeline_ShortCircuit(b *testing.B) {
	d := newPipeline(b)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		d.Detect("I will kill myself tonight", nil)
	}
}

func BenchmarkPipeline_Fused(b *testing.B) {
	d := newPipeline(b)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		d.Detect("I can't handle this and nothing matters", nil)
	}
}
