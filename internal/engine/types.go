package engine

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RiskLevel is the ordered severity of detected self-harm risk.
// Comparisons rely on the integer ordering: RiskLow < RiskMedium < RiskHigh < RiskExtreme.
type RiskLevel int

const (
	RiskUnspecified RiskLevel = iota
	RiskLow                   // low
	RiskMedium                // medium
	RiskHigh                  // high
	RiskExtreme               // extreme
)

// String returns the lowercase level name.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskExtreme:
		return "extreme"
	default:
		return "unspecified"
	}
}

// Valid reports whether l is one of the four defined levels.
func (l RiskLevel) Valid() bool {
	return l >= RiskLow && l <= RiskExtreme
}

// ParseRiskLevel maps a case-insensitive level name to a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "extreme":
		return RiskExtreme, nil
	default:
		return RiskUnspecified, fmt.Errorf("unknown risk level %q", s)
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

// TriageChannel gates coaching availability.
type TriageChannel int

const (
	ChannelUnspecified TriageChannel = iota
	ChannelGreen                     // green: coaching allowed
	ChannelYellow                    // yellow: allowed with caution markers
	ChannelRed                       // red: coaching halted
)

// String returns the lowercase channel name.
func (c TriageChannel) String() string {
	switch c {
	case ChannelGreen:
		return "green"
	case ChannelYellow:
		return "yellow"
	case ChannelRed:
		return "red"
	default:
		return "unspecified"
	}
}

// ParseTriageChannel maps a case-insensitive channel name to a TriageChannel.
func ParseTriageChannel(s string) (TriageChannel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "green":
		return ChannelGreen, nil
	case "yellow":
		return ChannelYellow, nil
	case "red":
		return ChannelRed, nil
	default:
		return ChannelUnspecified, fmt.Errorf("unknown triage channel %q", s)
	}
}

func (c TriageChannel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *TriageChannel) UnmarshalText(b []byte) error {
	parsed, err := ParseTriageChannel(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Detection sources.
const (
	SourceShortCircuit = "nlu-short-circuit"
	SourceFused        = "nlu+semantic"
	SourceFailClosed   = "fail-closed"
)

// DetectionResult is the outcome of one detection pass or of the full detector.
type DetectionResult struct {
	Level             RiskLevel `json:"level"`
	Source            string    `json:"source"`
	Reasons           []string  `json:"reasons"`
	NLULatencyMs      float64   `json:"nlu_latency_ms"`
	SemanticLatencyMs float64   `json:"semantic_latency_ms"`
	FailClosed        bool      `json:"fail_closed"`
}

// DialogueRiskSignal is a per-message risk assessment. It is also the shape of
// the optional override signal a caller may hand to the detector.
type DialogueRiskSignal struct {
	Level  RiskLevel `json:"level"`
	Text   string    `json:"text"`
	IsJoke bool      `json:"is_joke"`
}

// ScoreSet is a finished clinical-scale submission produced by the
// assessment-scoring collaborator.
type ScoreSet struct {
	PHQ9Score            int  `json:"phq9_score"`
	GAD7Score            int  `json:"gad7_score"`
	PSS10Score           int  `json:"pss10_score"`
	CSSRSPositive        bool `json:"cssrs_positive"`
	SCL90ModerateOrAbove bool `json:"scl90_moderate_or_above"`
}

// TriageDecision is the channel decision for a user.
// HaltCoaching implies Channel == ChannelRed.
type TriageDecision struct {
	Channel           TriageChannel `json:"channel"`
	Reasons           []string      `json:"reasons"`
	HaltCoaching      bool          `json:"halt_coaching"`
	ShowHotline       bool          `json:"show_hotline"`
	DialogueRiskLevel *RiskLevel    `json:"dialogue_risk_level"`
}

// ResponseMode names the safety response for a risk level.
type ResponseMode string

const (
	ModeMonitor          ResponseMode = "monitor"
	ModeSafetyPause      ResponseMode = "safety_pause"
	ModeCrisisStop       ResponseMode = "crisis_stop"
	ModeExtremeEmergency ResponseMode = "extreme_emergency"
)

// SafetyResponseAction is the action bundle the policy engine maps a level to.
type SafetyResponseAction struct {
	Mode                   ResponseMode  `json:"mode"`
	PauseTopic             bool          `json:"pause_topic"`
	StopCoaching           bool          `json:"stop_coaching"`
	ShowHotline            bool          `json:"show_hotline"`
	NotifyOps              bool          `json:"notify_ops"`
	NotifyEmergencyContact bool          `json:"notify_emergency_contact"`
	SuggestedChannel       TriageChannel `json:"suggested_channel"`
	Message                string        `json:"message"`
}

// LatencyMillis converts a duration to milliseconds rounded to 3 decimal places.
func LatencyMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*1000) / 1000
}
