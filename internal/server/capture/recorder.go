package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/voicedrop/internal/common"
	"github.com/dmitrijs2005/voicedrop/internal/filex"
	"github.com/dmitrijs2005/voicedrop/internal/logging"
	"github.com/dmitrijs2005/voicedrop/internal/server/validation"
)

// Archiver copies a finished capture somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, email, path string) error
}

// archiveTimeout bounds a single upload of a finished capture.
var archiveTimeout = 2 * time.Minute

// createSink is a seam for tests.
var createSink = func(path string, f Format) (Sink, error) {
	return CreateWavSink(path, f)
}

type RecorderOptions struct {
	Format       Format
	BufferChunks int
	Metrics      *Metrics
	Archiver     Archiver
}

// Recorder opens captures under root, one directory per owner email.
type Recorder struct {
	root         string
	format       Format
	bufferChunks int
	metrics      *Metrics
	archiver     Archiver
	logger       logging.Logger

	mu sync.Mutex
	// live maps an owner email to the id of its open capture
	live    map[string]string
	waiting bool
	uploads sync.WaitGroup
}

func NewRecorder(root string, opts RecorderOptions, l logging.Logger) *Recorder {
	format := opts.Format
	if format == (Format{}) {
		format = DefaultFormat
	}
	return &Recorder{
		root:         root,
		format:       format,
		bufferChunks: opts.BufferChunks,
		metrics:      opts.Metrics,
		archiver:     opts.Archiver,
		logger:       l.With("module", "capture"),
		live:         make(map[string]string),
	}
}

// validateOwner rejects emails that are malformed or could escape the users
// directory.
func validateOwner(email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return common.ErrorInvalidStreamOwner
	}
	if strings.ContainsAny(email, `/\`) || strings.Contains(email, "..") {
		return common.ErrorInvalidStreamOwner
	}
	return nil
}

// Start opens a capture for meta.SessionEmail, truncating any previous
// capture file of that user. While a capture for the same email is still
// open, Start refuses with common.ErrorStreamBusy.
func (r *Recorder) Start(ctx context.Context, meta Meta) (_ *Capture, err error) {
	email := meta.SessionEmail
	if err := validateOwner(email); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if !r.claim(email, id) {
		return nil, common.ErrorStreamBusy
	}
	defer func() {
		if err != nil {
			r.release(email, id)
		}
	}()

	dir, err := filex.EnsureDir(r.root, email)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName)
	if !filex.Within(r.root, path) {
		return nil, common.ErrorInvalidStreamOwner
	}

	sink, err := createSink(path, r.format)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}

	r.metrics.captureStarted()
	r.logger.Info(ctx, "capture started", "capture_id", id, "email", email, "path", path)

	return newCapture(id, meta, path, sink, r.bufferChunks, r.finished), nil
}

func (r *Recorder) claim(email, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[email]; ok {
		return false
	}
	r.live[email] = id
	return true
}

func (r *Recorder) release(email, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[email] == id {
		delete(r.live, email)
	}
}

func (r *Recorder) finished(res Result) {
	ctx := context.Background()

	r.release(res.Meta.SessionEmail, res.ID)
	r.metrics.captureFinished(res)

	if res.Err != nil {
		r.logger.Error(ctx, "capture finished with error",
			"capture_id", res.ID, "email", res.Meta.SessionEmail, "path", res.Path,
			"bytes", res.Bytes, "reason", res.Reason, "error", res.Err)
		return
	}

	r.logger.Info(ctx, "wrote capture",
		"capture_id", res.ID, "email", res.Meta.SessionEmail, "path", res.Path,
		"bytes", res.Bytes, "reason", res.Reason, "duration", res.Duration)

	if r.archiver == nil {
		return
	}

	r.mu.Lock()
	if r.waiting {
		// Wait has begun, upload inline instead of racing it
		r.mu.Unlock()
		r.archive(ctx, res)
		return
	}
	r.uploads.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.uploads.Done()
		r.archive(ctx, res)
	}()
}

func (r *Recorder) archive(ctx context.Context, res Result) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if err := r.archiver.Archive(ctx, res.Meta.SessionEmail, res.Path); err != nil {
		r.logger.Warn(ctx, "capture archive failed", "capture_id", res.ID, "error", err)
		return
	}
	r.logger.Debug(ctx, "capture archived", "capture_id", res.ID)
}

// Wait blocks until pending archive uploads are done. Captures finishing
// after Wait was called upload synchronously.
func (r *Recorder) Wait() {
	r.mu.Lock()
	r.waiting = true
	r.mu.Unlock()
	r.uploads.Wait()
}
