package engine

import (
	"errors"
	"fmt"

	"github.com/nightcrawler-video/nightcrawler/recovery"
)

// Kind names the stage an engine error happened in.
type Kind string

const (
	AttachError      Kind = "attach"
	ManifestError    Kind = "manifest"
	SegmentError     Kind = "segment"
	KeyError         Kind = "key"
	MediaDecodeError Kind = "media-decode"
)

var (
	ErrDestroyed         = errors.New("engine destroyed")
	ErrNotAttached       = errors.New("engine has no media attached")
	ErrLevelOutOfRange   = errors.New("level index out of range")
	ErrIncompatibleSink  = errors.New("sink does not accept engine-fed media")
	ErrEmptyLadder       = errors.New("master playlist has no variants")
	ErrUnexpectedList    = errors.New("unexpected playlist type")
	ErrUnsupportedCipher = errors.New("unsupported segment encryption")
	ErrInvalidSegment    = errors.New("segment is not a transport stream")
)

// Error is the single error type reported through EventError.
type Error struct {
	Kind     Kind
	Category recovery.Category
	Fatal    bool
	URL      string
	Err      error
}

func (e *Error) Error() string {
	severity := "transient"
	if e.Fatal {
		severity = "fatal"
	}

	if e.URL == "" {
		return fmt.Sprintf("%s %s error: %v", severity, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s %s error (%s): %v", severity, e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal implements recovery.Fault.
func (e *Error) IsFatal() bool {
	return e.Fatal
}

// FaultCategory implements recovery.Fault.
func (e *Error) FaultCategory() recovery.Category {
	return e.Category
}
