package playback

import "errors"

var (
	// ErrNotPlaying rejects a level change outside the Playing state.
	ErrNotPlaying = errors.New("session is not playing")
	// ErrSwitchInProgress rejects a level change while another one settles.
	ErrSwitchInProgress = errors.New("a level switch is already in progress")
	// ErrLevelOutOfRange rejects an index that is neither auto nor part of the ladder.
	ErrLevelOutOfRange = errors.New("level index out of range")
	// ErrNativePlayback rejects a level change when the sink plays the manifest by itself.
	ErrNativePlayback = errors.New("quality switching is unavailable in native playback")
	// ErrSwitch wraps an engine's refusal to change level.
	ErrSwitch = errors.New("engine rejected level change")
	// ErrNoSession is returned by host calls made while nothing is selected.
	ErrNoSession = errors.New("no asset selected")
	// ErrNoPlaybackPath fails a session whose sink can neither take engine media nor play natively.
	ErrNoPlaybackPath = errors.New("sink supports neither engine nor native playback")
)
