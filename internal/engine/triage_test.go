package engine

import (
	"encoding/json"
	"testing"
)

func signal(level RiskLevel) *DialogueRiskSignal {
	return &DialogueRiskSignal{Level: level}
}

func TestTriage_AllClear(t *testing.T) {
	d := NewTriageService().Evaluate(ScoreSet{}, nil)

	if d.Channel != ChannelGreen {
		t.Errorf("expected GREEN, got %s", d.Channel)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != ReasonScaleLowRisk {
		t.Errorf("expected [scale-low-risk], got %v", d.Reasons)
	}
	if d.HaltCoaching || d.ShowHotline {
		t.Errorf("expected no halt/hotline, got halt=%v hotline=%v", d.HaltCoaching, d.ShowHotline)
	}
	if d.DialogueRiskLevel != nil {
		t.Errorf("expected nil dialogue level, got %v", *d.DialogueRiskLevel)
	}
}

func TestTriage_PriorityTable(t *testing.T) {
	tests := []struct {
		name     string
		scores   ScoreSet
		dialogue *DialogueRiskSignal
		channel  TriageChannel
		reason   string
		halt     bool
		hotline  bool
	}{
		{"dialogue high", ScoreSet{}, signal(RiskHigh), ChannelRed, ReasonDialogueHighRisk, true, true},
		{"dialogue extreme", ScoreSet{}, signal(RiskExtreme), ChannelRed, ReasonDialogueHighRisk, true, true},
		{"dialogue medium", ScoreSet{}, signal(RiskMedium), ChannelYellow, ReasonDialogueMediumRisk, false, true},
		{"dialogue low falls through", ScoreSet{}, signal(RiskLow), ChannelGreen, ReasonScaleLowRisk, false, false},
		{"cssrs positive", ScoreSet{CSSRSPositive: true}, nil, ChannelRed, ReasonCSSRSPositive, true, true},
		{"phq9 severe", ScoreSet{PHQ9Score: 20}, nil, ChannelRed, ReasonPHQ9Severe, true, true},
		{"phq9 just below severe", ScoreSet{PHQ9Score: 19}, nil, ChannelYellow, ReasonScaleModerate, false, false},
		{"phq9 moderate boundary", ScoreSet{PHQ9Score: 10}, nil, ChannelYellow, ReasonScaleModerate, false, false},
		{"phq9 just below moderate", ScoreSet{PHQ9Score: 9}, nil, ChannelGreen, ReasonScaleLowRisk, false, false},
		{"gad7 moderate", ScoreSet{GAD7Score: 10}, nil, ChannelYellow, ReasonScaleModerate, false, false},
		{"gad7 just below", ScoreSet{GAD7Score: 9}, nil, ChannelGreen, ReasonScaleLowRisk, false, false},
		{"scl90 elevated", ScoreSet{SCL90ModerateOrAbove: true}, nil, ChannelYellow, ReasonSCL90Elevated, false, false},
		{"pss10 alone is ignored", ScoreSet{PSS10Score: 40}, nil, ChannelGreen, ReasonScaleLowRisk, false, false},
		{"cssrs beats phq9", ScoreSet{CSSRSPositive: true, PHQ9Score: 27}, nil, ChannelRed, ReasonCSSRSPositive, true, true},
		{"dialogue medium beats cssrs", ScoreSet{CSSRSPositive: true}, signal(RiskMedium), ChannelYellow, ReasonDialogueMediumRisk, false, true},
		{"moderate beats scl90", ScoreSet{GAD7Score: 15, SCL90ModerateOrAbove: true}, nil, ChannelYellow, ReasonScaleModerate, false, false},
	}

	svc := NewTriageService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := svc.Evaluate(tt.scores, tt.dialogue)
			if d.Channel != tt.channel {
				t.Errorf("channel: expected %s, got %s", tt.channel, d.Channel)
			}
			if len(d.Reasons) != 1 || d.Reasons[0] != tt.reason {
				t.Errorf("reasons: expected [%s], got %v", tt.reason, d.Reasons)
			}
			if d.HaltCoaching != tt.halt {
				t.Errorf("halt_coaching: expected %v, got %v", tt.halt, d.HaltCoaching)
			}
			if d.ShowHotline != tt.hotline {
				t.Errorf("show_hotline: expected %v, got %v", tt.hotline, d.ShowHotline)
			}
			if d.HaltCoaching && d.Channel != ChannelRed {
				t.Errorf("halt_coaching requires RED, got %s", d.Channel)
			}
		})
	}
}

func TestTriage_DialogueHighAlwaysRed(t *testing.T) {
	svc := NewTriageService()
	negatives := []ScoreSet{
		{},
		{PHQ9Score: -5, GAD7Score: -1, PSS10Score: -3},
	}
	for _, scores := range negatives {
		for _, lvl := range []RiskLevel{RiskHigh, RiskExtreme} {
			d := svc.Evaluate(scores, signal(lvl))
			if d.Channel != ChannelRed {
				t.Errorf("scores=%+v level=%s: expected RED, got %s", scores, lvl, d.Channel)
			}
			if d.DialogueRiskLevel == nil || *d.DialogueRiskLevel != lvl {
				t.Errorf("expected dialogue_risk_level %s", lvl)
			}
		}
	}
}

func TestTriageDecision_JSON(t *testing.T) {
	svc := NewTriageService()

	raw, err := json.Marshal(svc.Evaluate(ScoreSet{}, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"channel":"green","reasons":["scale-low-risk"],"halt_coaching":false,"show_hotline":false,"dialogue_risk_level":null}`
	if string(raw) != want {
		t.Errorf("unexpected JSON:\n got: %s\nwant: %s", raw, want)
	}

	raw, err = json.Marshal(svc.Evaluate(ScoreSet{}, signal(RiskExtreme)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["dialogue_risk_level"] != "extreme" {
		t.Errorf("expected dialogue_risk_level extreme, got %v", got["dialogue_risk_level"])
	}
	if got["channel"] != "red" {
		t.Errorf("expected channel red, got %v", got["channel"])
	}
}

func BenchmarkTriageEvaluate(b *testing.B) {
	svc := NewTriageService()
	scores := ScoreSet{PHQ9Score: 12, GAD7Score: 8, SCL90ModerateOrAbove: true}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		svc.Evaluate(scores, nil)
	}
}
