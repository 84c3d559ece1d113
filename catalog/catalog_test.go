package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

type backend struct {
	*httptest.Server
	listHits   atomic.Int32
	uploadFail atomic.Bool
	received   struct {
		title, description, filename string
		size                         int64
	}
}

func newBackend(t *testing.T) *backend {
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/videos", func(w http.ResponseWriter, r *http.Request) {
		b.listHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Video{
			{ID: "a1", Title: "Night Drive", Description: "city lights", ContentType: "video/mp4"},
			{ID: "b2", Title: "Harbor"},
		})
	})
	mux.HandleFunc("POST /api/v1/videos", func(w http.ResponseWriter, r *http.Request) {
		if b.uploadFail.Load() {
			http.Error(w, "disk full", http.StatusInternalServerError)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n, _ := io.Copy(io.Discard, file)

		b.received.title = r.FormValue("title")
		b.received.description = r.FormValue("description")
		b.received.filename = header.Filename
		b.received.size = n

		_ = json.NewEncoder(w).Encode(Video{ID: "c3", Title: b.received.title})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func TestManifestURL(t *testing.T) {
	Convey("Manifest URLs hang off the videos collection", t, func() {
		So(ManifestURL("http://localhost:8000/api/v1/", "a1"), ShouldEqual, "http://localhost:8000/api/v1/videos/a1/master.m3u8")
		So(ManifestURL("http://localhost:8000/api/v1", "a b"), ShouldEqual, "http://localhost:8000/api/v1/videos/a%20b/master.m3u8")
	})
}

func TestList(t *testing.T) {
	Convey("Given a catalog backend", t, func() {
		b := newBackend(t)
		ctx := context.Background()

		Convey("Listing decodes every video", func() {
			client := New(b.URL + "/api/v1")
			videos, err := client.List(ctx)
			So(err, ShouldBeNil)
			So(videos, ShouldHaveLength, 2)
			So(videos[0].ID, ShouldEqual, "a1")
			So(videos[0].String(), ShouldEqual, "Night Drive (a1)")
		})

		Convey("A cached listing is served without a request until refreshed", func() {
			client := New(b.URL+"/api/v1", WithCache(time.Minute))
			_, err := client.Refresh(ctx)
			So(err, ShouldBeNil)
			_, err = client.List(ctx)
			So(err, ShouldBeNil)
			So(b.listHits.Load(), ShouldEqual, 1)

			_, err = client.Refresh(ctx)
			So(err, ShouldBeNil)
			So(b.listHits.Load(), ShouldEqual, 2)
		})

		Convey("An unreachable backend is an error", func() {
			b.Close()
			_, err := New(b.URL + "/api/v1").List(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

// shelf is a backend whose first listing is taken before it is allowed to answer.
type shelf struct {
	*httptest.Server
	hits   atomic.Int32
	gate   chan struct{}
	mu     sync.Mutex
	videos []Video
}

func newShelf(t *testing.T) *shelf {
	s := &shelf{
		gate:   make(chan struct{}),
		videos: []Video{{ID: "a1"}, {ID: "b2"}},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		snapshot := append([]Video(nil), s.videos...)
		s.mu.Unlock()

		if s.hits.Add(1) == 1 {
			<-s.gate
		}
		_ = json.NewEncoder(w).Encode(snapshot)
	}))
	t.Cleanup(func() {
		s.release()
		s.Close()
	})
	return s
}

func (s *shelf) add(v Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos = append(s.videos, v)
}

func (s *shelf) release() {
	select {
	case <-s.gate:
	default:
		close(s.gate)
	}
}

type listing struct {
	videos []Video
	err    error
}

func listAsync(ctx context.Context, c *Client) <-chan listing {
	out := make(chan listing, 1)
	go func() {
		videos, err := c.List(ctx)
		out <- listing{videos, err}
	}()
	return out
}

func (s *shelf) waitHits(n int32) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.hits.Load() >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestRefresh(t *testing.T) {
	Convey("Given a listing stuck in flight", t, func() {
		s := newShelf(t)
		client := New(s.URL)
		stale := listAsync(context.Background(), client)
		So(s.waitHits(1), ShouldBeTrue)

		Convey("A refresh after an upload does not join it", func() {
			s.add(Video{ID: "c3"})

			videos, err := client.Refresh(context.Background())
			So(err, ShouldBeNil)
			So(videos, ShouldHaveLength, 3)
			So(s.hits.Load(), ShouldEqual, 2)

			s.release()
			old := <-stale
			So(old.err, ShouldBeNil)
			So(old.videos, ShouldHaveLength, 2)
		})

		Convey("A caller that gives up does not fail the others", func() {
			ctx, cancel := context.WithCancel(context.Background())
			impatient := listAsync(ctx, client)
			cancel()

			gaveUp := <-impatient
			So(errors.Is(gaveUp.err, context.Canceled), ShouldBeTrue)

			s.release()
			result := <-stale
			So(result.err, ShouldBeNil)
			So(result.videos, ShouldHaveLength, 2)
		})
	})
}

func TestUpload(t *testing.T) {
	Convey("Given a file to upload", t, func() {
		b := newBackend(t)
		client := New(b.URL + "/api/v1")
		ctx := context.Background()

		path := "/videos/clip.mp4"
		So(filesystem.API().WriteFile(path, make([]byte, 256*1024), 0644), ShouldBeNil)

		Convey("It is posted with its metadata and progress reaches the total", func() {
			job := NewUploadJob(path, "  Clip ", "short")
			var last UploadJob
			err := client.Upload(ctx, job, func(j UploadJob) {
				last = j
			})

			So(err, ShouldBeNil)
			So(job.Status, ShouldEqual, Succeeded)
			So(job.TotalBytes, ShouldEqual, 256*1024)
			So(job.BytesSent, ShouldEqual, job.TotalBytes)
			So(job.Video, ShouldNotBeNil)
			So(job.Video.ID, ShouldEqual, "c3")

			So(last.BytesSent, ShouldEqual, 256*1024)
			So(last.Status, ShouldEqual, InProgress)
			So(last.Percent(), ShouldEqual, 1)

			So(b.received.title, ShouldEqual, "Clip")
			So(b.received.description, ShouldEqual, "short")
			So(b.received.filename, ShouldEqual, "clip.mp4")
			So(b.received.size, ShouldEqual, 256*1024)
		})

		Convey("A rejected upload is a transport error", func() {
			b.uploadFail.Store(true)
			job := NewUploadJob(path, "Clip", "")
			err := client.Upload(ctx, job, nil)

			So(errors.Is(err, ErrUploadTransport), ShouldBeTrue)
			So(job.Status, ShouldEqual, Failed)
		})

		Convey("An unreachable backend is a transport error", func() {
			b.Close()
			job := NewUploadJob(path, "Clip", "")
			err := client.Upload(ctx, job, nil)

			So(errors.Is(err, ErrUploadTransport), ShouldBeTrue)
			So(job.Status, ShouldEqual, Failed)
		})

		Convey("A job without a title never leaves the client", func() {
			job := NewUploadJob(path, "   ", "")
			err := client.Upload(ctx, job, nil)

			So(errors.Is(err, ErrInvalidUpload), ShouldBeTrue)
			So(errors.Is(err, ErrUploadTransport), ShouldBeFalse)
			So(job.Status, ShouldEqual, Failed)
		})
	})
}
