package playback

// State is a stage of a session's lifecycle.
type State int

const (
	Idle State = iota
	Attaching
	ManifestPending
	Playing
	Switching
	Recovering
	Failed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attaching:
		return "attaching"
	case ManifestPending:
		return "manifest-pending"
	case Playing:
		return "playing"
	case Switching:
		return "switching"
	case Recovering:
		return "recovering"
	case Failed:
		return "failed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Live reports whether the state requires a bound sink and an engine.
func (s State) Live() bool {
	return s == Playing || s == Switching || s == Recovering
}

// Terminal reports whether no transition but teardown may follow.
func (s State) Terminal() bool {
	return s == Failed || s == Destroyed
}
