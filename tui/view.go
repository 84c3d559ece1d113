package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/nightcrawler-video/nightcrawler/color"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"
)

var (
	listExtraPaddingStyle = lipgloss.NewStyle().Padding(1, 2, 1, 0)
	paddingStyle          = lipgloss.NewStyle().Padding(1, 2)
)

func (b *statefulBubble) View() string {
	var output string

	switch b.state {
	case loadingState:
		output = b.viewLoading()
	case catalogState:
		output = listExtraPaddingStyle.Render(b.catalogC.View())
	case historyState:
		output = listExtraPaddingStyle.Render(b.historyC.View())
	case playerState:
		output = b.viewPlayer()
	case qualityState:
		output = listExtraPaddingStyle.Render(b.qualityC.View())
	case uploadState:
		output = b.viewUpload()
	case uploadingState:
		output = b.viewUploading()
	case errorState:
		output = b.viewError()
	default:
		output = "Unknown state"
	}

	return b.notifier.View(output)
}

func (b *statefulBubble) viewLoading() string {
	return b.renderLines(
		true,
		[]string{
			style.Title("Loading"),
			"",
			b.spinnerC.View() + " " + b.progressStatus,
		},
	)
}

// busy reports whether the session is waiting on the engine rather than playing.
func (n nowPlaying) busy() bool {
	switch n.state {
	case playback.Idle, playback.Attaching, playback.ManifestPending, playback.Switching, playback.Recovering:
		return true
	default:
		return n.buffering
	}
}

func (b *statefulBubble) viewPlayer() string {
	now := b.now
	truncate := style.Truncate(b.width)

	var status string
	switch {
	case now.state == playback.Failed:
		status = icon.Get(icon.Fail) + " " + style.Fg(color.Red)("Failed")
	case now.busy():
		status = b.spinnerC.View() + " " + strings.ReplaceAll(now.state.String(), "-", " ")
	case now.paused:
		status = icon.Get(icon.Pause) + " Paused"
	default:
		status = icon.Get(icon.Play) + " Playing"
	}

	quality := now.levels.Label(now.levels.Current())
	if now.levels.Current() == level.Auto && now.active != level.Auto {
		quality += style.Faint(" (" + now.levels.Label(now.active) + ")")
	}
	if now.native {
		quality = style.Faint("chosen by the player")
	}

	position := time.Duration(now.position * float64(time.Second)).Truncate(time.Second)

	lines := []string{
		style.Title("Now Playing"),
		"",
		truncate(icon.Get(icon.Video) + " " + style.Fg(color.Purple)(b.selected.Title)),
		"",
		truncate(status),
		truncate(fmt.Sprintf("%s %s %s", icon.Get(icon.Quality), style.Faint("Quality"), quality)),
		truncate(fmt.Sprintf("%s %s %s", icon.Get(icon.Play), style.Faint("Position"), position)),
	}

	if now.err != nil {
		lines = append(lines, "", wrap.String(style.Fg(color.Red)(now.err.Error()), b.width))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewUpload() string {
	lines := []string{
		style.Title("Upload"),
		"",
	}

	for _, input := range b.uploadC {
		lines = append(lines, input.View())
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewUploading() string {
	return b.renderLines(
		true,
		[]string{
			style.Title("Uploading"),
			"",
			style.Truncate(b.width)(icon.Get(icon.Upload) + " " + style.Fg(color.Purple)(b.upload.Title)),
			"",
			b.progressC.View(),
			style.Faint(describeJob(b.upload)),
		},
	)
}

func (b *statefulBubble) viewError() string {
	errorStyle := lipgloss.NewStyle().Foreground(style.ErrorColor).Bold(true)
	errorMsg := wrap.String(errorStyle.Render(b.lastError.Error()), b.width)
	return b.renderLines(
		true,
		[]string{
			style.ErrorTitle("Error"),
			"",
			icon.Get(icon.Fail) + " An error occurred:",
			"",
			errorMsg,
		},
	)
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}
