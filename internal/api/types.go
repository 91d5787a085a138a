package api

import (
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/chread"
	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
)

// --- Request bodies ---

// SignalReq is a caller-supplied dialogue risk signal.
type SignalReq struct {
	Level  string `json:"level" validate:"required,oneof=low medium high extreme"`
	Text   string `json:"text" validate:"max=10000"`
	IsJoke bool   `json:"is_joke"`
}

// toSignal converts a validated SignalReq. Validation guarantees the level parses.
func (s *SignalReq) toSignal() *engine.DialogueRiskSignal {
	if s == nil {
		return nil
	}
	level, _ := engine.ParseRiskLevel(s.Level)
	return &engine.DialogueRiskSignal{Level: level, Text: s.Text, IsJoke: s.IsJoke}
}

// ScoresReq is a finished clinical-scale submission.
type ScoresReq struct {
	PHQ9Score            int  `json:"phq9_score" validate:"max=27"`
	GAD7Score            int  `json:"gad7_score" validate:"max=21"`
	PSS10Score           int  `json:"pss10_score" validate:"max=40"`
	CSSRSPositive        bool `json:"cssrs_positive"`
	SCL90ModerateOrAbove bool `json:"scl90_moderate_or_above"`
}

func (s ScoresReq) toScoreSet() engine.ScoreSet {
	return engine.ScoreSet{
		PHQ9Score:            s.PHQ9Score,
		GAD7Score:            s.GAD7Score,
		PSS10Score:           s.PSS10Score,
		CSSRSPositive:        s.CSSRSPositive,
		SCL90ModerateOrAbove: s.SCL90ModerateOrAbove,
	}
}

// DetectRequest is the JSON body for POST /v1/safety/detect.
type DetectRequest struct {
	UserID   string     `json:"user_id" validate:"required,max=128"`
	Text     string     `json:"text" validate:"max=10000"`
	Override *SignalReq `json:"override,omitempty"`
}

// CheckRequest is the JSON body for POST /v1/safety/check.
type CheckRequest struct {
	UserID   string     `json:"user_id" validate:"required,max=128"`
	Text     string     `json:"text" validate:"max=10000"`
	Locale   string     `json:"locale,omitempty" validate:"omitempty,max=35"`
	Override *SignalReq `json:"override,omitempty"`
	// Scores are the user's latest assessment, if the caller has them.
	Scores *ScoresReq `json:"scores,omitempty"`
}

// EvaluateRequest is the JSON body for POST /v1/triage/evaluate.
type EvaluateRequest struct {
	UserID   string     `json:"user_id" validate:"required,max=128"`
	Scores   ScoresReq  `json:"scores"`
	Dialogue *SignalReq `json:"dialogue_risk,omitempty"`
}

// --- Responses ---

// DetectResponse wraps a detection result with a request id.
type DetectResponse struct {
	RequestID string                 `json:"request_id"`
	Detection engine.DetectionResult `json:"detection"`
	LatencyMs float64                `json:"latency_ms"`
}

// TriageResp is a triage decision as seen by the caller. Stored is false when
// the write lost the monotonic merge; Decision is then the one on record.
type TriageResp struct {
	UserID      string                `json:"user_id"`
	Decision    engine.TriageDecision `json:"decision"`
	Stored      bool                  `json:"stored"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

// CheckResponse is the full safety response for one chat turn.
type CheckResponse struct {
	RequestID string `json:"request_id"`
	*crisis.InterruptionResult
	Triage    *TriageResp `json:"triage"`
	LatencyMs float64     `json:"latency_ms"`
}

// HotlineResp is one locale entry.
type HotlineResp struct {
	Locale string `json:"locale"`
	crisis.HotlineRecord
}

// HotlineListResp is the full hotline table.
type HotlineListResp struct {
	Hotlines map[string]crisis.HotlineRecord `json:"hotlines"`
	Locales  []string                        `json:"locales"`
}

// OpsEventListResp is a user's ops audit log, newest first.
type OpsEventListResp struct {
	UserID string                 `json:"user_id"`
	Events []crisis.OpsAlertEvent `json:"events"`
}

// AnalyticsResp combines per-user aggregates with the latest raw events.
type AnalyticsResp struct {
	*chread.UserAnalytics
	RecentEvents []chread.EventRow `json:"recent_events"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

func toTriageResp(d *store.StoredDecision, stored bool) *TriageResp {
	return &TriageResp{
		UserID:      d.UserID,
		Decision:    d.TriageDecision,
		Stored:      stored,
		EvaluatedAt: d.EvaluatedAt,
	}
}
