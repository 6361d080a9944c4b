package capture

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

// EndReason records why a capture was finalized.
type EndReason string

const (
	EndOfStream  EndReason = "end"
	Superseded   EndReason = "superseded"
	Disconnected EndReason = "disconnect"
	WriteFailed  EndReason = "error"
)

// Result summarizes a finalized capture.
type Result struct {
	ID       string
	Meta     Meta
	Path     string
	Bytes    int64
	Reason   EndReason
	Duration time.Duration
	Err      error
}

// Capture is one logical stream being written to a Sink. Chunks go through a
// bounded queue to a dedicated writer goroutine, so Write blocks once the
// queue is full.
//
// Write and Finish belong to the connection goroutine and must not be called
// concurrently with each other.
type Capture struct {
	id      string
	meta    Meta
	path    string
	sink    Sink
	started time.Time

	chunks chan []byte
	done   chan struct{}

	mu       sync.Mutex
	writeErr error

	finished bool
	once     sync.Once
	result   Result
	onFinish func(Result)
}

func newCapture(id string, meta Meta, path string, sink Sink, queue int, onFinish func(Result)) *Capture {
	if queue < 1 {
		queue = 1
	}
	c := &Capture{
		id:       id,
		meta:     meta,
		path:     path,
		sink:     sink,
		started:  time.Now(),
		chunks:   make(chan []byte, queue),
		done:     make(chan struct{}),
		onFinish: onFinish,
	}
	go c.drain()
	return c
}

func (c *Capture) ID() string   { return c.id }
func (c *Capture) Meta() Meta   { return c.meta }
func (c *Capture) Path() string { return c.path }

// drain writes queued chunks in arrival order. After the first sink error
// chunks are discarded so producers never block on a dead sink.
func (c *Capture) drain() {
	defer close(c.done)
	for chunk := range c.chunks {
		if c.err() != nil {
			continue
		}
		if _, err := c.sink.Write(chunk); err != nil {
			c.mu.Lock()
			c.writeErr = err
			c.mu.Unlock()
		}
	}
}

func (c *Capture) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeErr
}

// Write queues a copy of p. It blocks while the queue is full and returns
// ctx.Err() if ctx ends first. A previous sink failure is reported instead of
// queueing.
func (c *Capture) Write(ctx context.Context, p []byte) error {
	if c.finished {
		return common.ErrorStreamClosed
	}
	if err := c.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case c.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish stops accepting chunks, waits for the writer to flush, and closes
// the sink. Only the first call has an effect; later calls return the same
// Result.
func (c *Capture) Finish(reason EndReason) Result {
	c.once.Do(func() {
		c.finished = true
		close(c.chunks)
		<-c.done

		closeErr := c.sink.Close()

		res := Result{
			ID:       c.id,
			Meta:     c.meta,
			Path:     c.path,
			Bytes:    c.sink.Bytes(),
			Reason:   reason,
			Duration: time.Since(c.started),
			Err:      c.err(),
		}
		if res.Err == nil {
			res.Err = closeErr
		}
		c.result = res

		if c.onFinish != nil {
			c.onFinish(res)
		}
	})
	return c.result
}
