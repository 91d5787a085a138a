package store

import (
	"context"
	"fmt"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// DefaultOpsEventLimit caps ListOpsEvents when the caller passes limit <= 0.
const DefaultOpsEventLimit = 50

// AppendOpsEvent inserts one audit record.
func (s *Store) AppendOpsEvent(ctx context.Context, event crisis.OpsAlertEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ops_alert_events (id, user_id, risk_level, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.UserID, event.RiskLevel.String(), event.Reason, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("AppendOpsEvent: %w", err)
	}
	return nil
}

// ListOpsEvents returns a user's ops alerts ordered by created_at DESC.
func (s *Store) ListOpsEvents(ctx context.Context, userID string, limit int) ([]crisis.OpsAlertEvent, error) {
	if limit <= 0 {
		limit = DefaultOpsEventLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, risk_level, reason, created_at
		FROM ops_alert_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListOpsEvents: %w", err)
	}
	defer rows.Close()

	events := []crisis.OpsAlertEvent{}
	for rows.Next() {
		var (
			e     crisis.OpsAlertEvent
			level string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &level, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("ListOpsEvents: %w", err)
		}
		if e.RiskLevel, err = engine.ParseRiskLevel(level); err != nil {
			return nil, fmt.Errorf("ListOpsEvents: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
