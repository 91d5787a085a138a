package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// DefaultRedHold is how long a stored RED decision resists a downgrade.
const DefaultRedHold = 10 * time.Minute

// ErrStaleDecision is returned when a triage write loses the monotonic merge.
var ErrStaleDecision = errors.New("triage decision is stale")

// StoredDecision is the latest triage decision persisted for a user.
type StoredDecision struct {
	UserID string `json:"user_id"`
	engine.TriageDecision
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// TriageStore keeps the latest TriageDecision per user.
type TriageStore interface {
	GetTriage(ctx context.Context, userID string) (*StoredDecision, error)
	SaveTriage(ctx context.Context, userID string, decision engine.TriageDecision, evaluatedAt time.Time) error
}

// EventLister reads a user's ops audit log, newest first.
type EventLister interface {
	ListOpsEvents(ctx context.Context, userID string, limit int) ([]crisis.OpsAlertEvent, error)
}

// acceptDecision reports whether incoming may replace current. A write never
// replaces a newer evaluation, and a RED decision cannot be downgraded by a
// write evaluated less than redHold after it. triageMergeWhere applies the
// same rule in Postgres; change both together.
func acceptDecision(current *StoredDecision, incoming StoredDecision, redHold time.Duration) bool {
	if current == nil {
		return true
	}
	if incoming.EvaluatedAt.Before(current.EvaluatedAt) {
		return false
	}
	if current.Channel == engine.ChannelRed && incoming.Channel != engine.ChannelRed &&
		incoming.EvaluatedAt.Sub(current.EvaluatedAt) < redHold {
		return false
	}
	return true
}

// Store provides access to the PostgreSQL database for triage decisions and
// the ops audit log.
type Store struct {
	db      *sql.DB
	redHold time.Duration
}

// NewStore creates a Store backed by the given database connection pool.
func NewStore(db *sql.DB, redHold time.Duration) *Store {
	return &Store{db: db, redHold: redHold}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS triage_decisions (
		user_id             TEXT PRIMARY KEY,
		channel             TEXT NOT NULL,
		reasons             JSONB NOT NULL,
		halt_coaching       BOOLEAN NOT NULL,
		show_hotline        BOOLEAN NOT NULL,
		dialogue_risk_level TEXT,
		evaluated_at        TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ops_alert_events (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		reason     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ops_alert_events_user_created_idx
		ON ops_alert_events (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS service_keys (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		key_hash   TEXT NOT NULL,
		key_prefix TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE service_keys ADD COLUMN IF NOT EXISTS revoked_at TIMESTAMPTZ`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("Migrate: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
