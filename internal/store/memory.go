package store

import (
	"context"
	"sync"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
)

// MemoryStore is an in-process TriageStore, EventAppender and EventLister.
// It applies the same merge rule as Store and is used when no database is
// configured.
type MemoryStore struct {
	mu        sync.Mutex
	redHold   time.Duration
	decisions map[string]StoredDecision
	events    map[string][]crisis.OpsAlertEvent
}

func NewMemoryStore(redHold time.Duration) *MemoryStore {
	return &MemoryStore{
		redHold:   redHold,
		decisions: make(map[string]StoredDecision),
		events:    make(map[string][]crisis.OpsAlertEvent),
	}
}

func (m *MemoryStore) GetTriage(_ context.Context, userID string) (*StoredDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.decisions[userID]
	if !ok {
		return nil, nil
	}
	d.Reasons = append([]string(nil), d.Reasons...)
	if d.DialogueRiskLevel != nil {
		lvl := *d.DialogueRiskLevel
		d.DialogueRiskLevel = &lvl
	}
	return &d, nil
}

func (m *MemoryStore) SaveTriage(_ context.Context, userID string, decision engine.TriageDecision, evaluatedAt time.Time) error {
	incoming := StoredDecision{UserID: userID, TriageDecision: decision, EvaluatedAt: evaluatedAt.UTC()}
	incoming.Reasons = append([]string(nil), decision.Reasons...)
	if decision.DialogueRiskLevel != nil {
		lvl := *decision.DialogueRiskLevel
		incoming.DialogueRiskLevel = &lvl
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var current *StoredDecision
	if d, ok := m.decisions[userID]; ok {
		current = &d
	}
	if !acceptDecision(current, incoming, m.redHold) {
		return ErrStaleDecision
	}
	m.decisions[userID] = incoming
	return nil
}

func (m *MemoryStore) AppendOpsEvent(_ context.Context, event crisis.OpsAlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.UserID] = append(m.events[event.UserID], event)
	return nil
}

func (m *MemoryStore) ListOpsEvents(_ context.Context, userID string, limit int) ([]crisis.OpsAlertEvent, error) {
	if limit <= 0 {
		limit = DefaultOpsEventLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[userID]
	out := make([]crisis.OpsAlertEvent, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
