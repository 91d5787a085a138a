package engine

// PolicyMessages holds the user-facing copy attached to each response mode.
// Passed explicitly to NewPolicyEngine; the engine never reads global config.
type PolicyMessages struct {
	Monitor          string `yaml:"monitor" mapstructure:"monitor"`
	SafetyPause      string `yaml:"safety_pause" mapstructure:"safety_pause"`
	CrisisStop       string `yaml:"crisis_stop" mapstructure:"crisis_stop"`
	ExtremeEmergency string `yaml:"extreme_emergency" mapstructure:"extreme_emergency"`
}

// DefaultPolicyMessages returns the built-in safety copy.
func DefaultPolicyMessages() PolicyMessages {
	return PolicyMessages{
		Monitor:          "Thanks for sharing. I'm here to keep supporting you.",
		SafetyPause:      "It sounds like things are really heavy right now. Let's pause this topic for a moment. If you need to talk to someone, crisis support is available any time.",
		CrisisStop:       "I'm concerned about your safety. I can't continue coaching right now, but you don't have to go through this alone. Please reach out to a crisis line now.",
		ExtremeEmergency: "Your safety matters most right now. Please contact emergency services or a crisis line immediately, and stay with someone you trust if you can.",
	}
}

// withDefaults fills any empty message with the built-in copy.
func (m PolicyMessages) withDefaults() PolicyMessages {
	def := DefaultPolicyMessages()
	if m.Monitor == "" {
		m.Monitor = def.Monitor
	}
	if m.SafetyPause == "" {
		m.SafetyPause = def.SafetyPause
	}
	if m.CrisisStop == "" {
		m.CrisisStop = def.CrisisStop
	}
	if m.ExtremeEmergency == "" {
		m.ExtremeEmergency = def.ExtremeEmergency
	}
	return m
}

// PolicyEngine maps a risk level to its response-action bundle.
// Resolve is total and pure.
type PolicyEngine struct {
	actions map[RiskLevel]SafetyResponseAction
}

// NewPolicyEngine builds the fixed action table with the given copy.
func NewPolicyEngine(messages PolicyMessages) *PolicyEngine {
	messages = messages.withDefaults()
	return &PolicyEngine{
		actions: map[RiskLevel]SafetyResponseAction{
			RiskLow: {
				Mode:             ModeMonitor,
				SuggestedChannel: ChannelGreen,
				Message:          messages.Monitor,
			},
			RiskMedium: {
				Mode:             ModeSafetyPause,
				PauseTopic:       true,
				ShowHotline:      true,
				SuggestedChannel: ChannelYellow,
				Message:          messages.SafetyPause,
			},
			RiskHigh: {
				Mode:             ModeCrisisStop,
				PauseTopic:       true,
				StopCoaching:     true,
				ShowHotline:      true,
				NotifyOps:        true,
				SuggestedChannel: ChannelRed,
				Message:          messages.CrisisStop,
			},
			RiskExtreme: {
				Mode:                   ModeExtremeEmergency,
				PauseTopic:             true,
				StopCoaching:           true,
				ShowHotline:            true,
				NotifyOps:              true,
				NotifyEmergencyContact: true,
				SuggestedChannel:       ChannelRed,
				Message:                messages.ExtremeEmergency,
			},
		},
	}
}

// Resolve returns the action bundle for level. A level outside the defined
// range resolves to the RiskHigh row.
func (p *PolicyEngine) Resolve(level RiskLevel) SafetyResponseAction {
	if action, ok := p.actions[level]; ok {
		return action
	}
	return p.actions[RiskHigh]
}
