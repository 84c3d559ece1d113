package playback

import (
	"github.com/google/uuid"
	"github.com/nightcrawler-video/nightcrawler/level"
)

// EventKind identifies a host-facing notification.
type EventKind int

const (
	LoadingChanged EventKind = iota
	LevelsChanged
	ErrorOccurred
	StateChanged
	LevelSwitched
)

func (k EventKind) String() string {
	switch k {
	case LoadingChanged:
		return "loading-changed"
	case LevelsChanged:
		return "levels-changed"
	case ErrorOccurred:
		return "error-occurred"
	case StateChanged:
		return "state-changed"
	case LevelSwitched:
		return "level-switched"
	default:
		return "unknown"
	}
}

// Event is published on Manager.Events. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	SessionID uuid.UUID
	AssetID   string

	Loading bool
	Levels  level.Catalog
	State   State
	// Level is the index media is being buffered from after a switch.
	Level int
	Err   error
	// Terminal marks an error after which the session will not recover.
	Terminal bool
}
