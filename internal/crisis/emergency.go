package crisis

import "github.com/Xanaaash/MiMind-sub000/internal/engine"

// EmergencyService gates contacting a user's emergency contact. It is a second
// authority on top of the policy engine's NotifyEmergencyContact flag: both
// the EXTREME tier and the jurisdictional legal flag are required.
type EmergencyService struct{}

func (EmergencyService) ShouldNotifyEmergencyContact(level engine.RiskLevel, legalPolicyEnabled bool) bool {
	return legalPolicyEnabled && level == engine.RiskExtreme
}
