package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/metrics"
	"github.com/Xanaaash/MiMind-sub000/internal/storage"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("mimind.api")

// handleDetect implements POST /v1/safety/detect.
func (d *Dependencies) handleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req DetectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	detection := d.detect(req.Text, req.Override.toSignal())
	requestID := uuid.NewString()
	d.writeDetectionEvent(requestID, req.UserID, req.Text, detection, nil)

	writeJSON(w, http.StatusOK, DetectResponse{
		RequestID: requestID,
		Detection: detection,
		LatencyMs: engine.LatencyMillis(time.Since(start)),
	})
}

// handleCheck implements POST /v1/safety/check: detection, the interruption
// response and, from MEDIUM up, a triage re-evaluation stored as the user's
// latest decision.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, span := tracer.Start(r.Context(), "safety.check",
		trace.WithAttributes(attribute.String("user_id", req.UserID)),
	)
	defer span.End()

	locale := req.Locale
	if locale == "" {
		locale = d.DefaultLocale
	}

	override := req.Override.toSignal()
	detection := d.detect(req.Text, override)
	span.SetAttributes(
		attribute.String("risk_level", detection.Level.String()),
		attribute.Bool("fail_closed", detection.FailClosed),
	)

	result := d.Interruption.Handle(ctx, req.UserID, locale, detection, d.LegalPolicyEnabled)

	var triage *TriageResp
	if detection.Level >= engine.RiskMedium {
		var scores engine.ScoreSet
		if req.Scores != nil {
			scores = req.Scores.toScoreSet()
		}
		signal := &engine.DialogueRiskSignal{Level: detection.Level, Text: req.Text}
		if override != nil {
			signal.IsJoke = override.IsJoke
		}
		resp, err := d.evaluateAndStore(ctx, req.UserID, scores, signal)
		if err != nil {
			// The safety response is already computed; a storage failure must not hide it.
			d.Logger.Error("failed to store triage decision",
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
		} else {
			triage = resp
		}
	}

	if svc := serviceFromContext(ctx); svc != nil && detection.Level >= engine.RiskHigh {
		d.Logger.Info("high risk detection",
			zap.String("user_id", req.UserID),
			zap.String("caller", svc.Name),
			zap.Stringer("risk_level", detection.Level),
			zap.String("mode", string(result.Action.Mode)),
		)
	}

	requestID := uuid.NewString()
	d.writeDetectionEvent(requestID, req.UserID, req.Text, detection, result)

	writeJSON(w, http.StatusOK, CheckResponse{
		RequestID:          requestID,
		InterruptionResult: result,
		Triage:             triage,
		LatencyMs:          engine.LatencyMillis(time.Since(start)),
	})
}

// detect runs the detector and records its metrics.
func (d *Dependencies) detect(text string, override *engine.DialogueRiskSignal) engine.DetectionResult {
	start := time.Now()
	detection := d.Detector.Detect(text, override)
	metrics.RecordDetection(detection.Level.String(), detection.Source, time.Since(start).Seconds(), detection.FailClosed)
	return detection
}

// evaluateAndStore runs triage and saves the decision. A write that loses the
// monotonic merge is not an error: the stored decision is returned with
// Stored=false.
func (d *Dependencies) evaluateAndStore(ctx context.Context, userID string, scores engine.ScoreSet, dialogue *engine.DialogueRiskSignal) (*TriageResp, error) {
	decision := d.Triage.Evaluate(scores, dialogue)
	evaluatedAt := time.Now().UTC()

	err := d.Store.SaveTriage(ctx, userID, decision, evaluatedAt)
	switch {
	case err == nil:
		metrics.RecordTriage(decision.Channel.String(), true)
		d.writeTriageEvent(userID, decision, evaluatedAt)
		return toTriageResp(&store.StoredDecision{
			UserID:         userID,
			TriageDecision: decision,
			EvaluatedAt:    evaluatedAt,
		}, true), nil
	case errors.Is(err, store.ErrStaleDecision):
		metrics.RecordTriage(decision.Channel.String(), false)
		current, getErr := d.Store.GetTriage(ctx, userID)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, err
		}
		return toTriageResp(current, false), nil
	default:
		return nil, err
	}
}

// writeDetectionEvent fires a detection outcome to the async analytics writer.
func (d *Dependencies) writeDetectionEvent(eventID, userID, text string, detection engine.DetectionResult, result *crisis.InterruptionResult) {
	hash, size := storage.HashText(text)
	event := &storage.SafetyEvent{
		EventID:           eventID,
		UserID:            userID,
		Timestamp:         time.Now().UTC(),
		Kind:              storage.KindDetection,
		RiskLevel:         detection.Level.String(),
		Source:            detection.Source,
		Reasons:           detection.Reasons,
		FailClosed:        detection.FailClosed,
		TextHash:          hash,
		TextSize:          size,
		NLULatencyMs:      detection.NLULatencyMs,
		SemanticLatencyMs: detection.SemanticLatencyMs,
	}
	if result != nil {
		event.ResponseMode = string(result.Action.Mode)
		event.Channel = result.Action.SuggestedChannel.String()
		event.HaltCoaching = result.Action.StopCoaching
		event.OpsNotified = result.OpsEvent != nil
		event.EmergencyContactNotified = result.EmergencyContactNotified
	}
	d.Writer.Write(event)
}

// writeTriageEvent fires a stored triage decision to the async analytics writer.
func (d *Dependencies) writeTriageEvent(userID string, decision engine.TriageDecision, evaluatedAt time.Time) {
	level := ""
	if decision.DialogueRiskLevel != nil {
		level = decision.DialogueRiskLevel.String()
	}
	d.Writer.Write(&storage.SafetyEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		Timestamp:    evaluatedAt,
		Kind:         storage.KindTriage,
		RiskLevel:    level,
		Reasons:      decision.Reasons,
		Channel:      decision.Channel.String(),
		HaltCoaching: decision.HaltCoaching,
	})
}
