package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventWriter is the interface for writing safety analytics events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *SafetyEvent)
	Close()
}

// Event kinds.
const (
	KindDetection = "detection"
	KindTriage    = "triage"
)

// SafetyEvent is one detection or triage outcome for analytics. Message text
// is never stored; only its hash and size.
type SafetyEvent struct {
	EventID                  string
	UserID                   string
	Timestamp                time.Time
	Kind                     string
	RiskLevel                string
	Source                   string
	Reasons                  []string
	FailClosed               bool
	ResponseMode             string
	Channel                  string
	HaltCoaching             bool
	OpsNotified              bool
	EmergencyContactNotified bool
	TextHash                 string
	TextSize                 uint32
	NLULatencyMs             float64
	SemanticLatencyMs        float64
}

// HashText returns the hex SHA-256 of text and its byte length.
func HashText(text string) (string, uint32) {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]), uint32(len(text))
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
