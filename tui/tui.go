// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"github.com/nightcrawler-video/nightcrawler/catalog"
	tea "github.com/charmbracelet/bubbletea"
)

// Options encapsulates the runtime configuration for the terminal user interface.
type Options struct {
	// Continue opens the watch history instead of the catalog.
	Continue bool
	Client   *catalog.Client
}

// Run initializes and executes the primary Bubble Tea application loop.
func Run(options *Options) error {
	bubble := newBubble(options)
	defer bubble.shutdown()

	if options.Continue {
		if err := bubble.loadHistory(); err != nil {
			return err
		}
		bubble.newState(historyState)
	} else {
		bubble.newState(loadingState)
	}

	_, err := tea.NewProgram(bubble, tea.WithAltScreen()).Run()
	return err
}
