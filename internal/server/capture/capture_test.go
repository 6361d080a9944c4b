package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

// memSink collects bytes in memory. When gate is non-nil every Write waits
// for a value on it.
type memSink struct {
	mu     sync.Mutex
	data   []byte
	closes int
	gate   chan struct{}
	err    error
}

func (s *memSink) Write(p []byte) (int, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.data = append(s.data, p...)
	return len(p), nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *memSink) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data))
}

func TestCapture_WritesInOrder(t *testing.T) {
	sink := &memSink{}
	c := newCapture("id", Meta{SessionEmail: "a@b.com"}, "p", sink, 4, nil)

	var want []byte
	for i := 0; i < 100; i++ {
		chunk := []byte{byte(i), byte(i + 1)}
		want = append(want, chunk...)
		require.NoError(t, c.Write(context.Background(), chunk))
	}

	res := c.Finish(EndOfStream)
	require.NoError(t, res.Err)
	assert.Equal(t, want, sink.data)
	assert.EqualValues(t, len(want), res.Bytes)
	assert.Equal(t, EndOfStream, res.Reason)
	assert.Equal(t, "a@b.com", res.Meta.SessionEmail)
}

func TestCapture_CopiesChunks(t *testing.T) {
	sink := &memSink{}
	c := newCapture("id", Meta{}, "p", sink, 4, nil)

	buf := []byte{1, 2}
	require.NoError(t, c.Write(context.Background(), buf))
	buf[0], buf[1] = 9, 9

	c.Finish(EndOfStream)
	assert.Equal(t, []byte{1, 2}, sink.data)
}

func TestCapture_FinishOnce(t *testing.T) {
	sink := &memSink{}
	calls := 0
	c := newCapture("id", Meta{}, "p", sink, 1, func(Result) { calls++ })

	first := c.Finish(EndOfStream)
	second := c.Finish(Disconnected)

	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, EndOfStream, second.Reason)

	assert.ErrorIs(t, c.Write(context.Background(), []byte{1}), common.ErrorStreamClosed)
}

func TestCapture_Backpressure(t *testing.T) {
	sink := &memSink{gate: make(chan struct{})}
	c := newCapture("id", Meta{}, "p", sink, 1, nil)

	ctx := context.Background()
	// first chunk is taken by the writer, which then blocks on the gate;
	// the second fills the queue
	require.NoError(t, c.Write(ctx, []byte{1}))
	require.NoError(t, c.Write(ctx, []byte{2}))

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	require.Eventually(t, func() bool {
		return errors.Is(c.Write(blocked, []byte{3}), context.DeadlineExceeded)
	}, time.Second, 10*time.Millisecond)

	unblocked := make(chan error, 1)
	go func() { unblocked <- c.Write(ctx, []byte{4}) }()

	select {
	case <-unblocked:
		t.Fatal("write must block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.gate)
	require.NoError(t, <-unblocked)

	c.Finish(EndOfStream)
	assert.Equal(t, []byte{1, 2, 4}, sink.data)
}

func TestCapture_SinkErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memSink{err: boom}
	c := newCapture("id", Meta{}, "p", sink, 4, nil)

	require.NoError(t, c.Write(context.Background(), []byte{1, 2}))
	require.Eventually(t, func() bool {
		return errors.Is(c.Write(context.Background(), []byte{3, 4}), boom)
	}, time.Second, 5*time.Millisecond)

	res := c.Finish(WriteFailed)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 1, sink.closes)
}
