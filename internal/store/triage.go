package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// GetTriage returns the latest decision for a user, or nil if none exists.
func (s *Store) GetTriage(ctx context.Context, userID string) (*StoredDecision, error) {
	var (
		d        StoredDecision
		channel  string
		reasons  []byte
		dialogue sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, channel, reasons, halt_coaching, show_hotline,
		       dialogue_risk_level, evaluated_at
		FROM triage_decisions WHERE user_id = $1`, userID,
	).Scan(&d.UserID, &channel, &reasons, &d.HaltCoaching, &d.ShowHotline, &dialogue, &d.EvaluatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTriage: %w", err)
	}

	if d.Channel, err = engine.ParseTriageChannel(channel); err != nil {
		return nil, fmt.Errorf("GetTriage: %w", err)
	}
	if err := json.Unmarshal(reasons, &d.Reasons); err != nil {
		return nil, fmt.Errorf("GetTriage: %w", err)
	}
	if dialogue.Valid {
		lvl, err := engine.ParseRiskLevel(dialogue.String)
		if err != nil {
			return nil, fmt.Errorf("GetTriage: %w", err)
		}
		d.DialogueRiskLevel = &lvl
	}
	d.EvaluatedAt = d.EvaluatedAt.UTC()
	return &d, nil
}

// triageMergeWhere is the ON CONFLICT guard for SaveTriage. It is the SQL form
// of acceptDecision and must change with it: the first line rejects an older
// evaluation, the NOT block rejects a RED downgrade inside the hold ($8
// seconds).
const triageMergeWhere = `
		WHERE EXCLUDED.evaluated_at >= triage_decisions.evaluated_at
		  AND NOT (
			triage_decisions.channel = 'red'
			AND EXCLUDED.channel <> 'red'
			AND EXCLUDED.evaluated_at < triage_decisions.evaluated_at + make_interval(secs => $8)
		  )`

const saveTriageSQL = `
		INSERT INTO triage_decisions (
			user_id, channel, reasons, halt_coaching, show_hotline,
			dialogue_risk_level, evaluated_at
		) VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			channel             = EXCLUDED.channel,
			reasons             = EXCLUDED.reasons,
			halt_coaching       = EXCLUDED.halt_coaching,
			show_hotline        = EXCLUDED.show_hotline,
			dialogue_risk_level = EXCLUDED.dialogue_risk_level,
			evaluated_at        = EXCLUDED.evaluated_at,
			updated_at          = now()` + triageMergeWhere

// SaveTriage upserts the user's decision under the monotonic merge rule. The
// check and the write are one atomic statement. Returns ErrStaleDecision when
// the write is rejected.
func (s *Store) SaveTriage(ctx context.Context, userID string, decision engine.TriageDecision, evaluatedAt time.Time) error {
	reasons, err := json.Marshal(decision.Reasons)
	if err != nil {
		return fmt.Errorf("SaveTriage: %w", err)
	}
	var dialogue *string
	if decision.DialogueRiskLevel != nil {
		v := decision.DialogueRiskLevel.String()
		dialogue = &v
	}

	result, err := s.db.ExecContext(ctx, saveTriageSQL,
		userID, decision.Channel.String(), string(reasons), decision.HaltCoaching,
		decision.ShowHotline, dialogue, evaluatedAt.UTC(), s.redHold.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("SaveTriage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SaveTriage: rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleDecision
	}
	return nil
}
