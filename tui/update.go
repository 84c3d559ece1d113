package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/history"
	"github.com/nightcrawler-video/nightcrawler/internal/ui"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/playback"
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if cmd := b.notifier.Update(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	// results of background work are handled whatever screen is showing
	switch msg := msg.(type) {
	case error:
		b.stopLoading()
		b.raiseError(msg)
		return b, tea.Batch(cmds...)
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		cmds = append(cmds, cmd)
	case progress.FrameMsg:
		model, cmd := b.progressC.Update(msg)
		b.progressC = model.(progress.Model)
		cmds = append(cmds, cmd)
	case []catalog.Video:
		cmds = append(cmds, b.setCatalog(msg))
		b.catalogLoaded = true
		b.stopLoading()
		if b.state == loadingState {
			b.newState(catalogState)
		}
		return b, tea.Batch(cmds...)
	case playback.Event:
		cmds = append(cmds, b.waitForPlayback(), b.onPlaybackEvent(msg))
		return b, tea.Batch(cmds...)
	case positionTickMsg:
		if b.state == playerState || b.state == qualityState {
			snapshot := b.manager.Snapshot()
			if snapshot.SessionID == b.now.session {
				b.now.position = snapshot.Position
				b.now.native = snapshot.Native
				b.now.active = snapshot.ActiveLevel
				b.now.paused = b.sink.Paused()
			}
		}
		cmds = append(cmds, b.tickPosition())
		return b, tea.Batch(cmds...)
	case levelRequestMsg:
		if msg.err != nil {
			cmds = append(cmds, ui.Notify(msg.err.Error(), ui.Failure))
		} else {
			cmds = append(cmds, ui.Notify("Switching to "+b.now.levels.Label(msg.index), ui.Info))
		}
		return b, tea.Batch(cmds...)
	case uploadProgressMsg:
		if b.state == uploadingState {
			b.upload = catalog.UploadJob(msg)
			cmds = append(cmds, b.progressC.SetPercent(b.upload.Percent()))
		}
		cmds = append(cmds, b.waitForUpload())
		return b, tea.Batch(cmds...)
	case uploadDoneMsg:
		cmds = append(cmds, b.onUploadDone(catalog.UploadJob(msg)))
		return b, tea.Batch(cmds...)
	case tea.KeyMsg:
		if bubblesKey.Matches(msg, b.keymap.forceQuit) {
			return b, tea.Quit
		}
	}

	var cmd tea.Cmd
	switch b.state {
	case loadingState:
		return b, tea.Batch(cmds...)
	case catalogState:
		cmd = b.updateCatalog(msg)
	case historyState:
		cmd = b.updateHistory(msg)
	case playerState:
		cmd = b.updatePlayer(msg)
	case qualityState:
		cmd = b.updateQuality(msg)
	case uploadState:
		cmd = b.updateUpload(msg)
	case uploadingState:
		cmd = b.updateUploading(msg)
	case errorState:
		cmd = b.updateError(msg)
	}

	return b, tea.Batch(append(cmds, cmd)...)
}

// onPlaybackEvent folds an event of the live session into the player screen.
// Events of sessions already torn down are dropped.
func (b *statefulBubble) onPlaybackEvent(event playback.Event) tea.Cmd {
	if event.SessionID != b.now.session {
		return nil
	}

	switch event.Kind {
	case playback.LoadingChanged:
		b.now.buffering = event.Loading
	case playback.LevelsChanged:
		b.now.levels = event.Levels
		if b.state == qualityState {
			b.setQualityItems()
		}
	case playback.StateChanged:
		b.now.state = event.State
	case playback.LevelSwitched:
		b.now.active = event.Level
		return ui.Notify("Now playing "+b.now.levels.Label(event.Level), ui.Success)
	case playback.ErrorOccurred:
		if event.Terminal {
			b.now.err = event.Err
			return ui.Notify("Playback failed", ui.Failure)
		}
		return ui.Notify(fmt.Sprintf("Recovering: %v", event.Err), ui.Info)
	}

	return nil
}

func (b *statefulBubble) onUploadDone(job catalog.UploadJob) tea.Cmd {
	b.upload = job
	b.cancelUpload = nil

	if job.Status != catalog.Succeeded {
		if b.state == uploadingState {
			b.previousState()
		}

		if errors.Is(job.Err, context.Canceled) {
			return ui.Notify("Upload cancelled", ui.Info)
		}
		return ui.Notify(fmt.Sprintf("Upload failed: %v", job.Err), ui.Failure)
	}

	for i := range b.uploadC {
		b.uploadC[i].Reset()
	}

	if b.state == uploadingState {
		b.previousState()
	}
	if b.state == uploadState {
		b.previousState()
	}

	return tea.Batch(
		ui.Notify(fmt.Sprintf("Uploaded %s", job.Title), ui.Success),
		b.loadCatalog(true),
		b.waitForCatalog(),
	)
}

// listFiltering reports whether l consumes keys for its filter prompt.
func listFiltering(l *list.Model) bool {
	return l.FilterState() == list.Filtering
}

func (b *statefulBubble) updateCatalog(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && !listFiltering(&b.catalogC) {
		switch {
		case bubblesKey.Matches(msg, b.keymap.back):
			if b.catalogC.FilterState() == list.Unfiltered {
				return nil
			}
		case bubblesKey.Matches(msg, b.keymap.play), bubblesKey.Matches(msg, b.keymap.resume):
			item, ok := b.catalogC.SelectedItem().(*listItem)
			if !ok {
				return nil
			}
			resume := bubblesKey.Matches(msg, b.keymap.resume)
			return b.play(item.internal.(catalog.Video), resume)
		case bubblesKey.Matches(msg, b.keymap.upload):
			b.newState(uploadState)
			b.focused = fileField
			return b.focusUpload()
		case bubblesKey.Matches(msg, b.keymap.history):
			if err := b.loadHistory(); err != nil {
				b.raiseError(err)
				return nil
			}
			b.newState(historyState)
			return nil
		case bubblesKey.Matches(msg, b.keymap.refresh):
			return tea.Batch(b.catalogC.StartSpinner(), b.loadCatalog(true), b.waitForCatalog())
		}
	}

	b.catalogC, cmd = b.catalogC.Update(msg)
	return cmd
}

func (b *statefulBubble) updateHistory(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && !listFiltering(&b.historyC) {
		switch {
		case bubblesKey.Matches(msg, b.keymap.back):
			if b.historyC.FilterState() == list.Unfiltered {
				if b.statesHistory.Len() == 0 {
					if b.catalogLoaded {
						b.newState(catalogState)
						return nil
					}
					b.newState(loadingState)
					return b.startLoading()
				}
				b.previousState()
				return nil
			}
		case bubblesKey.Matches(msg, b.keymap.play):
			item, ok := b.historyC.SelectedItem().(*listItem)
			if !ok {
				return nil
			}
			record := item.internal.(*history.Record)
			return b.play(catalog.Video{ID: record.AssetID, Title: record.Title}, true)
		case bubblesKey.Matches(msg, b.keymap.remove):
			item, ok := b.historyC.SelectedItem().(*listItem)
			if !ok {
				return nil
			}
			if err := history.Remove(item.internal.(*history.Record).AssetID); err != nil {
				b.raiseError(err)
				return nil
			}
			b.historyC.RemoveItem(b.historyC.Index())
			return nil
		}
	}

	b.historyC, cmd = b.historyC.Update(msg)
	return cmd
}

func (b *statefulBubble) updatePlayer(msg tea.Msg) tea.Cmd {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case bubblesKey.Matches(msgKey, b.keymap.back):
		b.stop()
		b.previousState()
	case bubblesKey.Matches(msgKey, b.keymap.quality):
		b.setQualityItems()
		b.newState(qualityState)
	case bubblesKey.Matches(msgKey, b.keymap.playPause):
		if b.now.state != playback.Playing {
			return nil
		}
		if err := b.togglePause(); err != nil {
			log.Warnf("toggle pause: %v", err)
			return ui.Notify(err.Error(), ui.Failure)
		}
		b.now.paused = !b.now.paused
	}

	return nil
}

func (b *statefulBubble) setQualityItems() {
	items := qualityOptions(b.now.levels, b.now.active)
	b.qualityC.SetItems(lo.Map(items, func(item *listItem, _ int) list.Item {
		return item
	}))

	for i, item := range items {
		if item.marked {
			b.qualityC.Select(i)
		}
	}
}

func (b *statefulBubble) updateQuality(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(msg, b.keymap.back):
			b.previousState()
			return nil
		case bubblesKey.Matches(msg, b.keymap.auto):
			b.previousState()
			return b.requestLevel(level.Auto)
		case bubblesKey.Matches(msg, b.keymap.confirm):
			item, ok := b.qualityC.SelectedItem().(*listItem)
			if !ok {
				return nil
			}
			b.previousState()
			return b.requestLevel(item.internal.(qualityOption).index)
		}
	}

	b.qualityC, cmd = b.qualityC.Update(msg)
	return cmd
}

func (b *statefulBubble) focusUpload() tea.Cmd {
	var cmds []tea.Cmd
	for i := range b.uploadC {
		if i == b.focused {
			cmds = append(cmds, b.uploadC[i].Focus())
		} else {
			b.uploadC[i].Blur()
		}
	}
	return tea.Batch(cmds...)
}

func (b *statefulBubble) updateUpload(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(msg, b.keymap.cancel):
			b.previousState()
			return nil
		case bubblesKey.Matches(msg, b.keymap.nextField):
			b.focused = (b.focused + 1) % uploadFields
			return b.focusUpload()
		case bubblesKey.Matches(msg, b.keymap.prevField):
			b.focused = (b.focused + uploadFields - 1) % uploadFields
			return b.focusUpload()
		case bubblesKey.Matches(msg, b.keymap.confirm) && b.focused < uploadFields-1:
			b.focused++
			return b.focusUpload()
		case bubblesKey.Matches(msg, b.keymap.confirm), bubblesKey.Matches(msg, b.keymap.submit):
			job := b.uploadJob()
			if job.File == "" {
				return ui.Notify("Choose a file to upload", ui.Failure)
			}
			b.newState(uploadingState)
			return tea.Batch(b.progressC.SetPercent(0), b.startUpload(job))
		}
	}

	var cmd tea.Cmd
	b.uploadC[b.focused], cmd = b.uploadC[b.focused].Update(msg)
	return cmd
}

func (b *statefulBubble) updateUploading(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && bubblesKey.Matches(msg, b.keymap.cancel) {
		if b.cancelUpload != nil {
			b.cancelUpload()
		}
	}
	return nil
}

func (b *statefulBubble) updateError(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case bubblesKey.Matches(msg, b.keymap.quit):
			return tea.Quit
		case bubblesKey.Matches(msg, b.keymap.back):
			if b.statesHistory.Len() == 0 {
				return tea.Quit
			}
			b.previousState()
		}
	}
	return nil
}
