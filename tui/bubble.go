package tui

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/internal/ui"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/query"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/charmbracelet/bubbles/help"
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// Upload form fields, in focus order.
const (
	fileField = iota
	titleField
	descriptionField
	uploadFields
)

// statefulBubble holds every screen's components and the playback session they drive.
type statefulBubble struct {
	state         state
	statesHistory util.Stack[state]
	loading       bool
	catalogLoaded bool

	keymap *statefulKeymap

	// components
	spinnerC  spinner.Model
	catalogC  list.Model
	historyC  list.Model
	qualityC  list.Model
	uploadC   [uploadFields]textinput.Model
	focused   int
	progressC progress.Model
	helpC     help.Model

	client *catalog.Client
	titles *titles

	// playback, created on the first selection
	loop    *loop.Loop
	sink    media.Sink
	manager *playback.Manager

	videosChannel chan []catalog.Video
	uploadChannel chan catalog.UploadJob
	doneChannel   chan catalog.UploadJob
	errorChannel  chan error

	selected catalog.Video
	now      nowPlaying

	upload       catalog.UploadJob
	cancelUpload context.CancelFunc

	progressStatus string
	lastError      error

	width, height int
	notifier      *ui.Model

	options *Options
}

// nowPlaying mirrors the live session as reported by its events.
type nowPlaying struct {
	session   uuid.UUID
	state     playback.State
	buffering bool
	paused    bool
	levels    level.Catalog
	active    int
	position  float64
	native    bool
	err       error
}

// titles maps asset ids to names for the watch history. It is read from the playback loop.
type titles struct {
	mu   sync.RWMutex
	byID map[string]string
}

func (t *titles) set(videos []catalog.Video) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range videos {
		t.byID[v.ID] = v.Title
	}
}

func (t *titles) get(id string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

// raiseError dispatches a terminal error and transitions the application to the failure view.
func (b *statefulBubble) raiseError(err error) {
	log.Error(err)
	b.lastError = err
	b.newState(errorState)
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

// newState moves to s, remembering the current screen unless it is transient.
func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}

	if !lo.Contains([]state{loadingState, uploadingState, errorState}, b.state) {
		b.statesHistory.Push(b.state)
	}

	b.setState(s)
}

func (b *statefulBubble) previousState() {
	if b.statesHistory.Len() > 0 {
		b.setState(b.statesHistory.Pop())
	}
}

func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	xx, yy := listExtraPaddingStyle.GetFrameSize()

	listWidth := width - xx
	listHeight := height - yy

	for _, l := range []*list.Model{&b.catalogC, &b.historyC, &b.qualityC} {
		l.SetSize(listWidth, listHeight)
		l.Help.Width = listWidth
	}

	for i := range b.uploadC {
		b.uploadC[i].Width = listWidth - len(b.uploadC[i].Prompt)
	}

	b.progressC.Width = listWidth
	b.width = width - x
	b.height = height - y
	b.helpC.Width = listWidth
}

func (b *statefulBubble) startLoading() tea.Cmd {
	b.loading = true
	return b.catalogC.StartSpinner()
}

func (b *statefulBubble) stopLoading() tea.Cmd {
	b.loading = false
	b.catalogC.StopSpinner()
	return nil
}

// shutdown tears the session down so its position is saved, then stops the sink.
func (b *statefulBubble) shutdown() {
	if b.cancelUpload != nil {
		b.cancelUpload()
	}

	if b.manager == nil {
		return
	}

	if err := b.manager.Close(); err != nil {
		log.Warnf("close playback: %v", err)
	}
	b.loop.Close()
	b.loop.Wait()

	if err := b.sink.Close(); err != nil {
		log.Warnf("close sink: %v", err)
	}
}

// fuzzyFilter ranks list items the same way the inline mode filters the catalog.
func fuzzyFilter(term string, targets []string) []list.Rank {
	return lo.Map(query.Rank(term, targets), func(i int, _ int) list.Rank {
		return list.Rank{Index: i}
	})
}

func newBubble(options *Options) *statefulBubble {
	keymap := newStatefulKeymap()
	bubble := statefulBubble{
		statesHistory: util.Stack[state]{},
		keymap:        keymap,
		client:        options.Client,
		titles:        &titles{byID: make(map[string]string)},

		videosChannel: make(chan []catalog.Video),
		uploadChannel: make(chan catalog.UploadJob, 1),
		doneChannel:   make(chan catalog.UploadJob),
		errorChannel:  make(chan error),

		now:      nowPlaying{levels: level.NewCatalog(nil, level.Auto), active: level.Auto},
		notifier: &ui.Model{},
		options:  options,
	}

	type listOptions struct {
		TitleStyle mo.Option[lipgloss.Style]
	}

	makeList := func(title string, description bool, options *listOptions) list.Model {
		delegate := list.NewDefaultDelegate()
		delegate.SetSpacing(viper.GetInt(key.TUIItemSpacing))
		delegate.ShowDescription = description
		delegate.Styles.SelectedTitle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(style.AccentColor).
			Foreground(style.AccentColor).
			Padding(0, 0, 0, 1)
		delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("7"))
		delegate.Styles.SelectedDesc = delegate.Styles.SelectedTitle

		listC := list.New([]list.Item{}, delegate, 0, 0)
		listC.KeyMap = bubble.keymap.forList()
		listC.AdditionalShortHelpKeys = bubble.keymap.ShortHelp
		listC.AdditionalFullHelpKeys = func() []bubblesKey.Binding {
			return bubble.keymap.FullHelp()[0]
		}
		listC.Filter = fuzzyFilter
		listC.Title = title
		listC.Styles.NoItems = paddingStyle
		if titleStyle, ok := options.TitleStyle.Get(); ok {
			listC.Styles.Title = titleStyle
		}
		listC.StatusMessageLifetime = time.Hour * 999
		listC.SetShowPagination(false)
		listC.SetShowStatusBar(false)

		return listC
	}

	bubble.helpC = help.New()

	// Configured once; the spinner is only ever shown or hidden afterwards.
	bubble.spinnerC = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(style.AccentColor)),
	)

	bubble.progressC = progress.New(progress.WithDefaultGradient())

	prompts := [uploadFields]string{"File: ", "Title: ", "Description: "}
	placeholders := [uploadFields]string{"/path/to/video.mp4", "Defaults to the file name", "Optional"}
	for i := range bubble.uploadC {
		input := textinput.New()
		input.Prompt = prompts[i]
		input.Placeholder = placeholders[i]
		input.CharLimit = 512
		bubble.uploadC[i] = input
	}

	bubble.catalogC = makeList("Catalog", true, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Base).Background(style.AccentColor).Padding(0, 1),
		),
	})
	bubble.catalogC.SetStatusBarItemName("video", "videos")

	bubble.historyC = makeList("Continue Watching", true, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Base).Background(style.Yellow).Padding(0, 1),
		),
	})
	bubble.historyC.SetStatusBarItemName("entry", "entries")

	bubble.qualityC = makeList("Quality", false, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Base).Background(style.Peach).Padding(0, 1),
		),
	})
	bubble.qualityC.SetStatusBarItemName("level", "levels")
	bubble.qualityC.SetFilteringEnabled(false)

	if w, h, err := util.TerminalSize(); err == nil {
		bubble.resize(w, h)
	}

	return &bubble
}
