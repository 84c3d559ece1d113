// Package recovery decides how a playback session reacts to an engine fault.
package recovery

// Category groups engine faults by the subsystem that raised them.
type Category int

const (
	CategoryOther Category = iota
	// CategoryNetwork covers manifest, playlist, key and segment transport failures.
	CategoryNetwork
	// CategoryMedia covers segments that arrived but could not be decrypted or demuxed.
	CategoryMedia
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryMedia:
		return "media"
	default:
		return "other"
	}
}

// Action is the response a session takes to a classified fault.
type Action int

const (
	Ignore Action = iota
	RetryNetwork
	RecoverMedia
	Terminate
)

func (a Action) String() string {
	switch a {
	case Ignore:
		return "ignore"
	case RetryNetwork:
		return "retry-network"
	case RecoverMedia:
		return "recover-media"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Fault is the severity and category an engine attaches to every error it reports.
type Fault interface {
	IsFatal() bool
	FaultCategory() Category
}

// MaxAttempts is the number of in-place recoveries allowed per category
// before the engine has reported progress again.
const MaxAttempts = 1

// Classify maps a fault to an action. attempts is the number of recoveries
// already issued for the fault's category since the last engine progress.
func Classify(f Fault, attempts int) Action {
	if f == nil || !f.IsFatal() {
		return Ignore
	}

	if attempts >= MaxAttempts {
		return Terminate
	}

	switch f.FaultCategory() {
	case CategoryNetwork:
		return RetryNetwork
	case CategoryMedia:
		return RecoverMedia
	default:
		return Terminate
	}
}
