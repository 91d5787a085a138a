package crisis

import (
	"context"
	"strings"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"go.uber.org/zap"
)

// InterruptionResult is the full safety response for one detection event.
type InterruptionResult struct {
	Detection                engine.DetectionResult      `json:"detection"`
	Action                   engine.SafetyResponseAction `json:"action"`
	Hotline                  *HotlineRecord              `json:"hotline"`
	OpsEvent                 *OpsAlertEvent              `json:"ops_event"`
	EmergencyContactNotified bool                        `json:"emergency_contact_notified"`
	HotlineCache             map[string]HotlineRecord    `json:"hotline_cache"`
}

// InterruptionService composes the policy engine and the crisis helpers into
// one response payload. It keeps no state between calls; a caller that sees
// Action.StopCoaching must end its own session.
type InterruptionService struct {
	policy    *engine.PolicyEngine
	hotlines  *HotlineResolver
	emergency EmergencyService
	ops       *OpsAlertService
	opsWait   time.Duration
	logger    *zap.Logger
}

const (
	// DefaultOpsWait is how long Handle waits for the ops audit write before
	// returning the safety response without ops_event.
	DefaultOpsWait = 500 * time.Millisecond

	// opsWriteTimeout bounds an ops write that outlives the request.
	opsWriteTimeout = 10 * time.Second
)

func NewInterruptionService(policy *engine.PolicyEngine, hotlines *HotlineResolver, ops *OpsAlertService, logger *zap.Logger) *InterruptionService {
	return &InterruptionService{
		policy:   policy,
		hotlines: hotlines,
		ops:      ops,
		opsWait:  DefaultOpsWait,
		logger:   logger,
	}
}

// WithOpsWait overrides DefaultOpsWait. A non-positive d keeps the default.
func (s *InterruptionService) WithOpsWait(d time.Duration) *InterruptionService {
	if d > 0 {
		s.opsWait = d
	}
	return s
}

// Handle resolves the action for detection and performs the side effects it
// asks for. Ops alert failures are logged and leave OpsEvent nil; they never
// change the rest of the result. A slow ops write is left running in the
// background once opsWait passes.
func (s *InterruptionService) Handle(ctx context.Context, userID, locale string, detection engine.DetectionResult, legalPolicyEnabled bool) *InterruptionResult {
	action := s.policy.Resolve(detection.Level)

	result := &InterruptionResult{
		Detection:    detection,
		Action:       action,
		HotlineCache: s.hotlines.LocalCachePayload(),
	}

	if action.ShowHotline {
		rec := s.hotlines.Resolve(locale)
		result.Hotline = &rec
	}

	if action.NotifyOps && s.ops != nil {
		result.OpsEvent = s.notifyOps(ctx, userID, detection)
	}

	result.EmergencyContactNotified = s.emergency.ShouldNotifyEmergencyContact(detection.Level, legalPolicyEnabled)

	return result
}

type opsOutcome struct {
	event OpsAlertEvent
	err   error
}

// notifyOps runs the ops write detached from ctx cancellation and waits at
// most opsWait for it. Returns nil when the write failed or is still pending.
func (s *InterruptionService) notifyOps(ctx context.Context, userID string, detection engine.DetectionResult) *OpsAlertEvent {
	done := make(chan opsOutcome, 1)
	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opsWriteTimeout)
		defer cancel()
		event, err := s.ops.Notify(writeCtx, userID, detection.Level, strings.Join(detection.Reasons, ","))
		if err != nil {
			s.logger.Error("ops alert failed",
				zap.String("user_id", userID),
				zap.Stringer("risk_level", detection.Level),
				zap.Error(err),
			)
		}
		done <- opsOutcome{event: event, err: err}
	}()

	timer := time.NewTimer(s.opsWait)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil
		}
		return &out.event
	case <-timer.C:
		s.logger.Warn("ops alert still pending, responding without ops event",
			zap.String("user_id", userID),
			zap.Stringer("risk_level", detection.Level),
			zap.Duration("waited", s.opsWait),
		)
		return nil
	}
}
