package storage

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHashText(t *testing.T) {
	hash, size := HashText("hello")
	if hash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected hash %s", hash)
	}
	if size != 5 {
		t.Errorf("expected size 5, got %d", size)
	}

	_, size = HashText("can’t")
	if size != 7 {
		t.Errorf("expected byte length 7, got %d", size)
	}
}

func TestLogWriter_NeverLogsText(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := NewLogWriter(zap.New(core))

	hash, size := HashText("I will kill myself tonight")
	w.Write(&SafetyEvent{
		EventID:   "evt-1",
		UserID:    "user-1",
		Kind:      KindDetection,
		RiskLevel: "high",
		Reasons:   []string{"high-keyword:kill myself"},
		TextHash:  hash,
		TextSize:  size,
	})
	w.Close()

	entries := logs.FilterMessage("safety_event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "user-1" || fields["risk_level"] != "high" {
		t.Errorf("unexpected fields %v", fields)
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "I will kill myself tonight" {
			t.Errorf("raw text leaked in field %s", k)
		}
	}
}
