package core

// Listener receives the engine's per-tick notifications. OnContextChanged
// fires on every tick; OnRiskLevelChanged only when the level differs from
// the previous tick's.
type Listener interface {
	OnContextChanged(snapshot *ContextData)
	OnRiskLevelChanged(old, new RiskLevel, snapshot *ContextData)
}

// AnomalyListener is the optional third capability. Listeners that don't
// implement it simply never hear about keyboard anomalies.
type AnomalyListener interface {
	OnKeyboardAnomalyDetected(kb *KeyboardContext)
}

// ListenerFuncs adapts plain functions into a Listener. Nil fields are
// no-ops, so callers can supply only the callbacks they care about.
type ListenerFuncs struct {
	ContextChanged   func(snapshot *ContextData)
	RiskLevelChanged func(old, new RiskLevel, snapshot *ContextData)
	KeyboardAnomaly  func(kb *KeyboardContext)
}

func (l *ListenerFuncs) OnContextChanged(snapshot *ContextData) {
	if l.ContextChanged != nil {
		l.ContextChanged(snapshot)
	}
}

func (l *ListenerFuncs) OnRiskLevelChanged(old, new RiskLevel, snapshot *ContextData) {
	if l.RiskLevelChanged != nil {
		l.RiskLevelChanged(old, new, snapshot)
	}
}

func (l *ListenerFuncs) OnKeyboardAnomalyDetected(kb *KeyboardContext) {
	if l.KeyboardAnomaly != nil {
		l.KeyboardAnomaly(kb)
	}
}
