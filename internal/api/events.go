package api

import (
	"net/http"

	"github.com/Xanaaash/MiMind-sub000/internal/store"
	"go.uber.org/zap"
)

func (d *Dependencies) handleListOpsEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	limit := queryInt(r.URL.Query(), "limit", store.DefaultOpsEventLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	events, err := d.OpsEvents.ListOpsEvents(r.Context(), userID, limit)
	if err != nil {
		d.Logger.Error("failed to list ops events", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list ops events"})
		return
	}

	writeJSON(w, http.StatusOK, OpsEventListResp{UserID: userID, Events: events})
}

func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	userID := r.PathValue("user_id")
	q := r.URL.Query()

	days := queryInt(q, "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}
	limit := queryInt(q, "limit", 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	analytics, err := d.Reader.GetUserAnalytics(r.Context(), userID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}
	recent, err := d.Reader.RecentEvents(r.Context(), userID, limit)
	if err != nil {
		d.Logger.Error("failed to list recent events", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResp{UserAnalytics: analytics, RecentEvents: recent})
}
