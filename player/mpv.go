package player

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nightcrawler-video/nightcrawler/constant"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
)

// stdinTarget makes mpv read the stream from its standard input.
const stdinTarget = "-"

// ErrStreamEnded is returned by Append once EndOfStream closed the feed.
var ErrStreamEnded = errors.New("mpv stream already ended")

// MPV is a media sink backed by an mpv process.
//
// Engine-fed media is written to mpv's standard input; natively played
// manifests are loaded by URL. The process is started lazily by whichever
// of the two is used first.
type MPV struct {
	title string

	socketPath string
	cmd        *exec.Cmd
	stdin      *os.File
	target     string
	exited     chan struct{}
	events     *EventListener

	mu sync.Mutex // Protects socket writes

	state     sync.Mutex // Protects the process fields above
	listeners map[media.EventName]map[int]media.Listener
	nextID    int
}

// NewMPV creates a sink whose window will be titled title. Nothing is started yet.
func NewMPV(title string) *MPV {
	return &MPV{
		title:     sanitizeTitle(title),
		exited:    make(chan struct{}),
		listeners: make(map[media.EventName]map[int]media.Listener),
	}
}

// arguments builds the mpv command line. The user's mpv.conf is respected:
// no video output, profile or decoding flags are passed.
func arguments(socketPath, title, target string) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--input-ipc-server=%s", socketPath),
		"--force-window=yes",
		"--idle=yes",
		"--keep-open=yes",
	}

	if title != "" {
		args = append(args,
			fmt.Sprintf("--force-media-title=%s", title),
			fmt.Sprintf("--title=%s", title),
		)
	}

	if target == stdinTarget {
		args = append(args, "--cache=yes", "--demuxer-lavf-format=mpegts")
	}

	return append(args, target)
}

// start launches mpv on target unless it already runs.
func (m *MPV) start(target string) error {
	m.state.Lock()
	defer m.state.Unlock()

	if m.runningLocked() {
		// a stdin stream that reached its end cannot take more input
		if m.target == target && (target != stdinTarget || m.stdin != nil) {
			return nil
		}

		if target != stdinTarget && m.target != stdinTarget {
			m.target = target
			_, err := m.sendCommand([]interface{}{"loadfile", target, "replace"})
			return err
		}

		m.stopLocked()
	}

	if m.socketPath == "" {
		randomBytes := make([]byte, 4)
		if _, err := rand.Read(randomBytes); err != nil {
			return fmt.Errorf("generate socket name: %w", err)
		}
		m.socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("%s-%x.sock", constant.Nightcrawler, randomBytes))
	}

	cmd := exec.Command("mpv", arguments(m.socketPath, m.title, target)...)

	// Detach from parent process group to prevent cascading shell panics.
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = nil
	cmd.Stderr = nil

	// A pipe of our own rather than cmd.StdinPipe, so writes honour deadlines.
	var stdin, feed *os.File
	if target == stdinTarget {
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("mpv stdin: %w", err)
		}
		cmd.Stdin = r
		stdin, feed = w, r
	}

	err := cmd.Start()
	if feed != nil {
		_ = feed.Close()
	}
	if err != nil {
		if stdin != nil {
			_ = stdin.Close()
		}
		return fmt.Errorf("start mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	m.cmd, m.stdin, m.target, m.exited = cmd, stdin, target, exited

	if err := m.waitForSocket(); err != nil {
		select {
		case <-exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = killProcess(cmd)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	m.events = NewEventListener(m.socketPath, m.dispatch)
	if err := m.events.Start(); err != nil {
		log.Warnf("mpv events unavailable: %v", err)
	}

	return nil
}

func (m *MPV) runningLocked() bool {
	if m.cmd == nil {
		return false
	}

	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

// stopLocked quits mpv and waits for it, killing it after closeTimeout.
func (m *MPV) stopLocked() {
	if m.events != nil {
		m.events.Stop()
		m.events = nil
	}

	if m.stdin != nil {
		_ = m.stdin.Close()
		m.stdin = nil
	}

	if !m.runningLocked() {
		return
	}

	_, _ = m.sendCommand([]interface{}{"quit"})

	select {
	case <-m.exited:
	case <-time.After(closeTimeout):
		_ = killProcess(m.cmd)
	}
}

// Wait returns a channel that is closed when the mpv process exits.
func (m *MPV) Wait() <-chan struct{} {
	m.state.Lock()
	defer m.state.Unlock()
	return m.exited
}

// waitForSocket polls until the mpv IPC socket is accepting connections.
func (m *MPV) waitForSocket() error {
	for i := 0; i < socketWaitRetries; i++ {
		time.Sleep(socketWaitDelay)

		select {
		case <-m.exited:
			return fmt.Errorf("mpv exited before socket was ready")
		default:
		}

		conn, err := net.Dial("unix", m.socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

func (m *MPV) running() bool {
	m.state.Lock()
	defer m.state.Unlock()
	return m.runningLocked()
}

func (m *MPV) Play() error {
	if !m.running() {
		return nil
	}
	return m.set("pause", false)
}

func (m *MPV) Pause() error {
	if !m.running() {
		return nil
	}
	return m.set("pause", true)
}

func (m *MPV) Paused() bool {
	if !m.running() {
		return true
	}

	data, err := m.sendCommand([]interface{}{"get_property", "pause"})
	if err != nil {
		return true
	}

	paused, ok := data.(bool)
	return !ok || paused
}

// CurrentTime returns mpv's time-pos, or zero while nothing is loaded.
func (m *MPV) CurrentTime() float64 {
	if !m.running() {
		return 0
	}

	pos, err := m.getFloatProperty("time-pos")
	if err != nil {
		return 0
	}
	return pos
}

// Seek moves playback to the given absolute position in seconds.
func (m *MPV) Seek(seconds float64) error {
	if !m.running() {
		return nil
	}

	_, err := m.sendCommand([]interface{}{"seek", seconds, "absolute"})
	return err
}

// CanPlayNative reports true for playlists and transport streams, which mpv demuxes itself.
func (m *MPV) CanPlayNative(mime string) bool {
	switch mime {
	case constant.MimeHLSPlaylist, constant.MimeMPEGTS:
		_, err := exec.LookPath("mpv")
		return err == nil
	default:
		return false
	}
}

func (m *MPV) LoadNative(rawURL string) error {
	target, err := sanitizeMediaTarget(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	return m.start(target)
}

// Append writes a segment to mpv's input. It blocks while mpv's cache is
// full, until Interrupt is called.
func (m *MPV) Append(chunk media.Chunk) error {
	if err := m.start(stdinTarget); err != nil {
		return err
	}

	m.state.Lock()
	stdin := m.stdin
	m.state.Unlock()

	if stdin == nil {
		return ErrStreamEnded
	}

	_, err := stdin.Write(chunk.Data)
	return err
}

// Interrupt aborts the write Append is blocked in and fails later ones until
// resume is called. Where pipes take no deadlines the input is closed instead,
// and the next Append restarts mpv.
func (m *MPV) Interrupt() (resume func()) {
	m.state.Lock()
	defer m.state.Unlock()

	stdin := m.stdin
	if stdin == nil {
		return func() {}
	}

	if err := stdin.SetWriteDeadline(time.Unix(1, 0)); err != nil {
		log.Debugf("mpv stdin deadline: %v", err)
		_ = stdin.Close()
		m.stdin = nil
		return func() {}
	}

	return func() {
		_ = stdin.SetWriteDeadline(time.Time{})
	}
}

// Flush drops everything mpv has demuxed but not yet presented.
func (m *MPV) Flush() error {
	if !m.running() {
		return nil
	}

	_, err := m.sendCommand([]interface{}{"drop-buffers"})
	return err
}

// EndOfStream closes mpv's input so it plays out what it has and reports eof.
func (m *MPV) EndOfStream() {
	m.state.Lock()
	defer m.state.Unlock()

	if m.stdin != nil {
		_ = m.stdin.Close()
		m.stdin = nil
	}
}

func (m *MPV) AddListener(name media.EventName, fn media.Listener) (remove func()) {
	m.state.Lock()
	defer m.state.Unlock()

	id := m.nextID
	m.nextID++

	if m.listeners[name] == nil {
		m.listeners[name] = make(map[int]media.Listener)
	}
	m.listeners[name][id] = fn

	return func() {
		m.state.Lock()
		defer m.state.Unlock()
		delete(m.listeners[name], id)
	}
}

// dispatch translates mpv notifications into sink events.
func (m *MPV) dispatch(property string, data interface{}) {
	var event media.Event

	switch property {
	case "file-loaded":
		event = media.Event{Name: media.MetadataLoaded}
	case "time-pos":
		pos, ok := data.(float64)
		if !ok {
			return
		}
		event = media.Event{Name: media.TimeUpdate, Position: pos}
	case "eof-reached":
		if reached, ok := data.(bool); !ok || !reached {
			return
		}
		event = media.Event{Name: media.Ended}
	default:
		return
	}

	m.state.Lock()
	listeners := make([]media.Listener, 0, len(m.listeners[event.Name]))
	for _, fn := range m.listeners[event.Name] {
		listeners = append(listeners, fn)
	}
	m.state.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Close shuts down the mpv process and cleans up resources.
func (m *MPV) Close() error {
	m.state.Lock()
	defer m.state.Unlock()

	m.stopLocked()

	if m.socketPath != "" {
		_ = os.Remove(m.socketPath)
	}

	return nil
}

// Socket returns the IPC socket path.
func (m *MPV) Socket() string {
	return m.socketPath
}

func (m *MPV) set(property string, value interface{}) error {
	_, err := m.sendCommand([]interface{}{"set_property", property, value})
	return err
}

// getFloatProperty is a helper to retrieve a float64 mpv property via IPC.
func (m *MPV) getFloatProperty(name string) (float64, error) {
	data, err := m.sendCommand([]interface{}{"get_property", name})
	if err != nil {
		return 0, err
	}

	if data == nil {
		return 0, fmt.Errorf("property %s: nil response", name)
	}

	val, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("property %s: expected float64, got %T", name, data)
	}

	return val, nil
}

// sanitizeMediaTarget validates that a URL is safe to pass to mpv.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", fmt.Errorf("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in URL")
	}

	// Prevent flag injection: URLs must not start with -
	if strings.HasPrefix(l, "-") {
		return "", fmt.Errorf("url must not start with '-' (looks like a flag)")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

// sanitizeTitle cleans up the title for mpv
func sanitizeTitle(title string) string {
	t := strings.ReplaceAll(title, "\n", " ")
	t = strings.ReplaceAll(t, "\r", " ")
	t = strings.ReplaceAll(t, "\t", " ")
	t = strings.ReplaceAll(t, "\x00", "")
	return strings.TrimSpace(t)
}
