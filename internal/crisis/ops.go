package crisis

import (
	"context"
	"fmt"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpsAlertEvent is one entry in a user's ops audit log.
type OpsAlertEvent struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	RiskLevel engine.RiskLevel `json:"risk_level"`
	Reason    string           `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventAppender appends to the per-user ops audit log. Implementations must
// make a single append atomic.
type EventAppender interface {
	AppendOpsEvent(ctx context.Context, event OpsAlertEvent) error
}

// Publisher forwards an ops alert to the human review queue.
type Publisher interface {
	PublishOpsAlert(ctx context.Context, event OpsAlertEvent) error
}

// OpsAlertService records ops alerts and fans them out to the review queue.
type OpsAlertService struct {
	appender  EventAppender
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOpsAlertService creates the service. publisher may be nil.
func NewOpsAlertService(appender EventAppender, publisher Publisher, logger *zap.Logger) *OpsAlertService {
	return &OpsAlertService{
		appender:  appender,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify appends an alert to the user's audit log and publishes it.
// An append failure is returned. A publish failure is only logged: the audit
// record is already durable and the queue is best-effort.
func (s *OpsAlertService) Notify(ctx context.Context, userID string, level engine.RiskLevel, reason string) (OpsAlertEvent, error) {
	event := OpsAlertEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		RiskLevel: level,
		Reason:    reason,
		Timestamp: s.now().UTC(),
	}

	if err := s.appender.AppendOpsEvent(ctx, event); err != nil {
		metrics.RecordOpsAlert(level.String(), false)
		return OpsAlertEvent{}, fmt.Errorf("Notify: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOpsAlert(ctx, event); err != nil {
			s.logger.Warn("ops alert publish failed",
				zap.String("event_id", event.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	metrics.RecordOpsAlert(level.String(), true)
	return event, nil
}
