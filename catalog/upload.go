package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/network"
	"github.com/nightcrawler-video/nightcrawler/util"
)

var (
	// ErrUploadTransport marks an upload the backend never accepted.
	ErrUploadTransport = errors.New("upload failed")
	// ErrInvalidUpload rejects a job before anything is sent.
	ErrInvalidUpload = errors.New("invalid upload")
)

// Status is the stage of an upload.
type Status int

const (
	Pending Status = iota
	InProgress
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadJob describes a file being added to the catalog.
type UploadJob struct {
	File        string
	Title       string
	Description string

	BytesSent  int64
	TotalBytes int64
	Status     Status
	Err        error
	// Video is the catalog entry the backend created, when it returned one.
	Video *Video
}

// NewUploadJob returns a pending job for file.
func NewUploadJob(file, title, description string) *UploadJob {
	return &UploadJob{
		File:        file,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      Pending,
	}
}

// Percent returns the share of the file sent so far, between 0 and 1.
func (j UploadJob) Percent() float64 {
	if j.TotalBytes <= 0 {
		return 0
	}
	return float64(j.BytesSent) / float64(j.TotalBytes)
}

// Progress receives a copy of the job every time more of the file is sent.
type Progress func(job UploadJob)

type countingReader struct {
	r    io.Reader
	sent *atomic.Int64
	tick func(sent int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.tick(c.sent.Add(int64(n)))
	}
	return n, err
}

// Upload posts job as multipart form data and updates it in place.
// progress may be nil. Failures to reach or convince the backend wrap ErrUploadTransport.
func (c *Client) Upload(ctx context.Context, job *UploadJob, progress Progress) error {
	if job.File == "" || job.Title == "" {
		job.Status = Failed
		job.Err = fmt.Errorf("%w: a file and a title are required", ErrInvalidUpload)
		return job.Err
	}

	file, err := filesystem.API().Open(job.File)
	if err != nil {
		job.Status = Failed
		job.Err = fmt.Errorf("%w: %w", ErrInvalidUpload, err)
		return job.Err
	}
	defer util.Ignore(file.Close)

	info, err := file.Stat()
	if err != nil {
		job.Status = Failed
		job.Err = err
		return err
	}

	job.TotalBytes = info.Size()
	job.BytesSent = 0
	job.Status = InProgress

	snapshot := *job
	report := func(sent int64) {
		if progress == nil {
			return
		}
		current := snapshot
		current.BytesSent = sent
		progress(current)
	}
	report(0)

	var sent atomic.Int64
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		err := writeForm(form, job.Title, job.Description, util.SanitizeFilename(filepath.Base(job.File)), &countingReader{r: file, sent: &sent, tick: report})
		_ = writer.CloseWithError(err)
	}()

	req, err := network.NewRequest(ctx, http.MethodPost, c.base+"/videos", body)
	if err != nil {
		_ = body.CloseWithError(err)
		return c.failUpload(job, &sent, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		_ = body.CloseWithError(err)
		return c.failUpload(job, &sent, err)
	}
	defer util.Ignore(resp.Body.Close)

	job.BytesSent = sent.Load()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.failUpload(job, &sent, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(message))))
	}

	var video Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err == nil && video.ID != "" {
		job.Video = &video
	}

	job.Status = Succeeded
	return nil
}

func writeForm(form *multipart.Writer, title, description, filename string, file io.Reader) error {
	if err := form.WriteField("title", title); err != nil {
		return err
	}

	if err := form.WriteField("description", description); err != nil {
		return err
	}

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, file); err != nil {
		return err
	}

	return form.Close()
}

func (c *Client) failUpload(job *UploadJob, sent *atomic.Int64, err error) error {
	job.BytesSent = sent.Load()
	job.Status = Failed
	job.Err = fmt.Errorf("%w: %w", ErrUploadTransport, err)
	return job.Err
}
