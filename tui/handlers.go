package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/history"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/player"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// positionInterval is how often the player screen polls the session.
const positionInterval = time.Second

type (
	positionTickMsg struct{}
	levelRequestMsg struct {
		index int
		err   error
	}
	uploadProgressMsg catalog.UploadJob
	uploadDoneMsg     catalog.UploadJob
)

func (b *statefulBubble) loadCatalog(refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var (
			videos []catalog.Video
			err    error
		)

		if refresh {
			videos, err = b.client.Refresh(ctx)
		} else {
			videos, err = b.client.List(ctx)
		}

		if err != nil {
			log.Error(err)
			b.errorChannel <- err
			return nil
		}

		log.Infof("found %s", util.Quantify(len(videos), "video", "videos"))
		b.videosChannel <- videos
		return nil
	}
}

func (b *statefulBubble) waitForCatalog() tea.Cmd {
	return func() tea.Msg {
		select {
		case found := <-b.videosChannel:
			return found
		case err := <-b.errorChannel:
			b.lastError = err
			return err
		}
	}
}

// setCatalog fills the catalog list, marking what was watched before.
func (b *statefulBubble) setCatalog(videos []catalog.Video) tea.Cmd {
	b.titles.set(videos)

	watched, err := history.Get()
	if err != nil {
		log.Warnf("read history: %v", err)
	}

	items := lo.Map(videos, func(v catalog.Video, _ int) list.Item {
		_, seen := watched[v.ID]
		return &listItem{internal: v, marked: seen, base: b.client.BaseURL()}
	})

	return b.catalogC.SetItems(items)
}

func (b *statefulBubble) loadHistory() error {
	records, err := history.Recent()
	if err != nil {
		return err
	}

	b.historyC.SetItems(lo.Map(records, func(r *history.Record, _ int) list.Item {
		return &listItem{internal: r}
	}))
	return nil
}

// ensurePlayback builds the sink and the session manager on first use.
// Both live until the program exits.
func (b *statefulBubble) ensurePlayback(title string) (bool, error) {
	if b.manager != nil {
		return false, nil
	}

	sink, err := player.NewSinkFromViper(title)
	if err != nil {
		return false, err
	}

	opts := playback.OptionsFromViper()
	opts.Positions = history.Store{Title: b.titles.get}

	b.loop = loop.New(context.Background(), 256)
	b.sink = sink
	b.manager = playback.NewManager(b.loop, sink, b.client.BaseURL(), opts)
	return true, nil
}

// play selects video, resuming from history when resume is set.
func (b *statefulBubble) play(video catalog.Video, resume bool) tea.Cmd {
	created, err := b.ensurePlayback(video.Title)
	if err != nil {
		b.raiseError(err)
		return nil
	}

	if resume {
		err = b.manager.Continue(video.ID)
	} else {
		err = b.manager.Select(video.ID)
	}
	if err != nil {
		b.raiseError(err)
		return nil
	}

	snapshot := b.manager.Snapshot()
	b.selected = video
	b.now = nowPlaying{
		session:   snapshot.SessionID,
		state:     snapshot.State,
		buffering: true,
		levels:    snapshot.Levels,
		active:    snapshot.ActiveLevel,
		position:  snapshot.Position,
	}
	b.newState(playerState)

	if created {
		return tea.Batch(b.waitForPlayback(), b.tickPosition())
	}
	return nil
}

// stop tears the session down, which also records where it was left.
func (b *statefulBubble) stop() {
	if b.manager == nil {
		return
	}

	if err := b.manager.Teardown(); err != nil {
		log.Warnf("teardown: %v", err)
	}
}

func (b *statefulBubble) waitForPlayback() tea.Cmd {
	events := b.manager.Events()
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return event
	}
}

func (b *statefulBubble) tickPosition() tea.Cmd {
	return tea.Tick(positionInterval, func(time.Time) tea.Msg {
		return positionTickMsg{}
	})
}

func (b *statefulBubble) requestLevel(index int) tea.Cmd {
	manager := b.manager
	return func() tea.Msg {
		return levelRequestMsg{index: index, err: manager.RequestLevelChange(index)}
	}
}

func (b *statefulBubble) togglePause() error {
	if b.sink.Paused() {
		return b.sink.Play()
	}
	return b.sink.Pause()
}

// startUpload sends the job in the background, reporting progress on uploadChannel.
func (b *statefulBubble) startUpload(job *catalog.UploadJob) tea.Cmd {
	select {
	case <-b.uploadChannel:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelUpload = cancel
	b.upload = *job

	go func() {
		defer cancel()

		err := b.client.Upload(ctx, job, func(current catalog.UploadJob) {
			// only the latest progress matters
			select {
			case <-b.uploadChannel:
			default:
			}
			b.uploadChannel <- current
		})
		if err != nil {
			log.Errorf("upload %s: %v", job.File, err)
		}

		b.doneChannel <- *job
	}()

	return b.waitForUpload()
}

func (b *statefulBubble) waitForUpload() tea.Cmd {
	return func() tea.Msg {
		select {
		case job := <-b.uploadChannel:
			return uploadProgressMsg(job)
		case job := <-b.doneChannel:
			return uploadDoneMsg(job)
		}
	}
}

// uploadJob builds a job from the form, naming it after the file when no title was typed.
func (b *statefulBubble) uploadJob() *catalog.UploadJob {
	file := b.uploadC[fileField].Value()
	title := b.uploadC[titleField].Value()
	if title == "" && file != "" {
		title = util.FileStem(file)
	}

	return catalog.NewUploadJob(file, title, b.uploadC[descriptionField].Value())
}

func describeJob(job catalog.UploadJob) string {
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(job.BytesSent)), humanize.Bytes(uint64(job.TotalBytes)))
}
