package engine

// Exact scale boundaries. Scores at the threshold belong to the higher band.
const (
	PHQ9SevereThreshold = 20
	ModerateThreshold   = 10
)

// Triage reason tags.
const (
	ReasonDialogueHighRisk   = "dialogue-high-risk"
	ReasonDialogueMediumRisk = "dialogue-medium-risk"
	ReasonCSSRSPositive      = "cssrs-positive"
	ReasonPHQ9Severe         = "phq9-severe"
	ReasonScaleModerate      = "scale-moderate"
	ReasonSCL90Elevated      = "scl90-elevated"
	ReasonScaleLowRisk       = "scale-low-risk"
)

// triageRule is one row of the priority table.
type triageRule struct {
	reason  string
	channel TriageChannel
	halt    bool
	hotline bool
	match   func(scores ScoreSet, dialogue *DialogueRiskSignal) bool
}

// triageRules is evaluated top to bottom; the first match wins.
// Dialogue rules come first: a live conversational signal reflects the user's
// present state more reliably than a periodic questionnaire.
var triageRules = []triageRule{
	{
		reason: ReasonDialogueHighRisk, channel: ChannelRed, halt: true, hotline: true,
		match: func(_ ScoreSet, d *DialogueRiskSignal) bool {
			return d != nil && d.Level >= RiskHigh
		},
	},
	{
		reason: ReasonDialogueMediumRisk, channel: ChannelYellow, hotline: true,
		match: func(_ ScoreSet, d *DialogueRiskSignal) bool {
			return d != nil && d.Level == RiskMedium
		},
	},
	{
		reason: ReasonCSSRSPositive, channel: ChannelRed, halt: true, hotline: true,
		match: func(s ScoreSet, _ *DialogueRiskSignal) bool {
			return s.CSSRSPositive
		},
	},
	{
		reason: ReasonPHQ9Severe, channel: ChannelRed, halt: true, hotline: true,
		match: func(s ScoreSet, _ *DialogueRiskSignal) bool {
			return s.PHQ9Score >= PHQ9SevereThreshold
		},
	},
	{
		reason: ReasonScaleModerate, channel: ChannelYellow,
		match: func(s ScoreSet, _ *DialogueRiskSignal) bool {
			return s.PHQ9Score >= ModerateThreshold || s.GAD7Score >= ModerateThreshold
		},
	},
	{
		reason: ReasonSCL90Elevated, channel: ChannelYellow,
		match: func(s ScoreSet, _ *DialogueRiskSignal) bool {
			return s.SCL90ModerateOrAbove
		},
	},
}

// TriageService fuses a dialogue risk signal with a clinical score set.
type TriageService struct{}

func NewTriageService() *TriageService {
	return &TriageService{}
}

// Evaluate returns the channel decision for scores and an optional dialogue
// signal. When no rule matches the decision is GREEN / scale-low-risk.
func (t *TriageService) Evaluate(scores ScoreSet, dialogue *DialogueRiskSignal) TriageDecision {
	var dialogueLevel *RiskLevel
	if dialogue != nil {
		lvl := dialogue.Level
		dialogueLevel = &lvl
	}

	for _, rule := range triageRules {
		if rule.match(scores, dialogue) {
			return TriageDecision{
				Channel:           rule.channel,
				Reasons:           []string{rule.reason},
				HaltCoaching:      rule.halt,
				ShowHotline:       rule.hotline,
				DialogueRiskLevel: dialogueLevel,
			}
		}
	}

	return TriageDecision{
		Channel:           ChannelGreen,
		Reasons:           []string{ReasonScaleLowRisk},
		DialogueRiskLevel: dialogueLevel,
	}
}
