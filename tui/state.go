package tui

type state int

const (
	loadingState state = iota
	errorState
	catalogState
	historyState
	playerState
	qualityState
	uploadState
	uploadingState
)
