package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const (
	segmentCount    = 3
	segmentDuration = 4
	segmentSize     = 188
)

var (
	fixtureKey = []byte("0123456789abcdef")
	ladder     = []string{"360p", "720p", "1080p"}
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
360p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720
720p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000
1080p/index.m3u8
`

// stream serves a three-level ladder and lets tests break it on demand.
type stream struct {
	*httptest.Server
	encrypted     bool
	failSegments  atomic.Bool
	corrupt       atomic.Bool
	segmentHits   atomic.Int32
	keyHits       atomic.Int32
	manifestFails atomic.Bool
}

func newStream(t *testing.T, encrypted bool) *stream {
	s := &stream{encrypted: encrypted}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *stream) MasterURL() string {
	return s.URL + "/videos/abc/master.m3u8"
}

func (s *stream) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/videos/abc/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "master.m3u8":
		if s.manifestFails.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(masterPlaylist))
	case len(parts) == 1 && parts[0] == "key":
		s.keyHits.Add(1)
		_, _ = w.Write(fixtureKey)
	case len(parts) == 2 && parts[1] == "index.m3u8":
		_, _ = w.Write([]byte(s.mediaPlaylist()))
	case len(parts) == 2 && strings.HasPrefix(parts[1], "segment"):
		s.segmentHits.Add(1)
		if s.failSegments.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(parts[1], "segment"), ".ts"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		data := segmentBytes(levelIndex(parts[0]), n)
		if s.corrupt.Load() {
			data[0] = 0x00
		}

		if s.encrypted {
			data = encryptFixture(data, uint64(n))
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func (s *stream) mediaPlaylist() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n#EXT-X-MEDIA-SEQUENCE:0\n", segmentDuration)
	if s.encrypted {
		b.WriteString("#EXT-X-KEY:METHOD=AES-128,URI=\"../key\"\n")
	}
	for i := 0; i < segmentCount; i++ {
		fmt.Fprintf(&b, "#EXTINF:%d.000000,\nsegment%d.ts\n", segmentDuration, i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func levelIndex(name string) int {
	for i, l := range ladder {
		if l == name {
			return i
		}
	}
	return -1
}

func segmentBytes(level, sequence int) []byte {
	data := make([]byte, segmentSize)
	data[0] = tsSyncByte
	data[1] = byte(level)
	data[2] = byte(sequence)
	return data
}

func encryptFixture(data []byte, sequence uint64) []byte {
	block, _ := aes.NewCipher(fixtureKey)
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], sequence)

	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

// events records everything an engine emits.
type events struct {
	ch chan Event
}

func record(e Engine) *events {
	rec := &events{ch: make(chan Event, 256)}
	for _, name := range []EventName{EventManifestParsed, EventLevelSwitched, EventFragBuffered, EventBufferEOS, EventError} {
		e.On(name, func(ev Event) {
			rec.ch <- ev
		})
	}
	return rec
}

// next skips events until one matches name or the timeout expires.
func (r *events) next(name EventName) (Event, bool) {
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Name == name {
				return ev, true
			}
		case <-timeout:
			return Event{}, false
		}
	}
}

// until collects every event up to and including the first matching name.
func (r *events) until(name EventName) ([]Event, bool) {
	var seen []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			seen = append(seen, ev)
			if ev.Name == name {
				return seen, true
			}
		case <-timeout:
			return seen, false
		}
	}
}

func testConfig(client *http.Client) Config {
	cfg := DefaultConfig()
	cfg.Client = client
	cfg.MaxRetries = 1
	cfg.RetryDelay = time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxBufferAhead = 1000
	cfg.StartLevel = 0
	return cfg
}
