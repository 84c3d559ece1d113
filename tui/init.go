package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Init starts the spinner and fetches the catalog. In history mode the
// catalog still loads in the background so titles and marks are known.
func (b *statefulBubble) Init() tea.Cmd {
	b.progressStatus = "Fetching catalog"
	return tea.Batch(b.spinnerC.Tick, b.loadCatalog(false), b.waitForCatalog(), b.startLoading())
}
