package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// handleEvaluate implements POST /v1/triage/evaluate.
func (d *Dependencies) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, span := tracer.Start(r.Context(), "triage.evaluate",
		trace.WithAttributes(attribute.String("user_id", req.UserID)),
	)
	defer span.End()

	resp, err := d.evaluateAndStore(ctx, req.UserID, req.Scores.toScoreSet(), req.Dialogue.toSignal())
	if err != nil {
		d.Logger.Error("failed to store triage decision", zap.String("user_id", req.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to store triage decision"})
		return
	}
	span.SetAttributes(
		attribute.String("channel", resp.Decision.Channel.String()),
		attribute.Bool("stored", resp.Stored),
	)

	writeJSON(w, http.StatusOK, resp)
}

// handleGetTriage implements GET /v1/triage/{user_id}.
func (d *Dependencies) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	current, err := d.Store.GetTriage(r.Context(), userID)
	if err != nil {
		d.Logger.Error("failed to get triage decision", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get triage decision"})
		return
	}
	if current == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No triage decision for user."})
		return
	}

	writeJSON(w, http.StatusOK, toTriageResp(current, true))
}
