package api

import (
	"context"
	"net/http"

	"github.com/Xanaaash/MiMind-sub000/internal/auth"
	"github.com/Xanaaash/MiMind-sub000/internal/chread"
	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/storage"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AnalyticsReader serves per-user analytics from the event warehouse.
type AnalyticsReader interface {
	RecentEvents(ctx context.Context, userID string, limit int) ([]chread.EventRow, error)
	GetUserAnalytics(ctx context.Context, userID string, days int) (*chread.UserAnalytics, error)
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Detector     *engine.SafetyDetector
	Triage       *engine.TriageService
	Interruption *crisis.InterruptionService
	Hotlines     *crisis.HotlineResolver
	Store        store.TriageStore
	OpsEvents    store.EventLister
	Writer       storage.EventWriter
	Reader       AnalyticsReader    // nil if ClickHouse unavailable
	Auth         auth.Authenticator // nil disables service-key auth
	Logger       *zap.Logger

	LegalPolicyEnabled bool
	DefaultLocale      string
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Safety (auth required via Bearer msk_ token)
	mux.HandleFunc("POST /v1/safety/detect", deps.authMiddleware(deps.handleDetect))
	mux.HandleFunc("POST /v1/safety/check", deps.authMiddleware(deps.handleCheck))

	// Triage
	mux.HandleFunc("POST /v1/triage/evaluate", deps.authMiddleware(deps.handleEvaluate))
	mux.HandleFunc("GET /v1/triage/{user_id}", deps.authMiddleware(deps.handleGetTriage))

	// Hotlines
	mux.HandleFunc("GET /v1/hotlines", deps.authMiddleware(deps.handleListHotlines))
	mux.HandleFunc("GET /v1/hotlines/{locale}", deps.authMiddleware(deps.handleGetHotline))

	// Audit & Analytics
	mux.HandleFunc("GET /v1/ops/events/{user_id}", deps.authMiddleware(deps.handleListOpsEvents))
	mux.HandleFunc("GET /v1/analytics/{user_id}", deps.authMiddleware(deps.handleGetAnalytics))

	// Health check & metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
