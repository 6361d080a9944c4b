package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sink receives the raw PCM bytes of one capture.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
	// Bytes reports the PCM bytes committed so far.
	Bytes() int64
}

// WavSink encodes little-endian 16-bit PCM into a WAV file. The header is
// written on creation and patched with the final sizes on Close.
type WavSink struct {
	f       *os.File
	enc     *wav.Encoder
	format  *audio.Format
	pending []byte
	written int64
	closed  bool
}

// CreateWavSink truncates or creates path and writes a WAV header for format.
// Only 16-bit formats are supported.
func CreateWavSink(path string, format Format) (*WavSink, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", format.BitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	s := &WavSink{
		f:   f,
		enc: wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.NumChannels, 1),
		format: &audio.Format{
			NumChannels: format.NumChannels,
			SampleRate:  format.SampleRate,
		},
	}

	// an empty buffer makes the encoder emit the RIFF and data headers
	if err := s.enc.Write(s.buffer(nil)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}

	return s, nil
}

func (s *WavSink) buffer(data []int) *audio.IntBuffer {
	if data == nil {
		data = []int{}
	}
	return &audio.IntBuffer{Format: s.format, Data: data, SourceBitDepth: 16}
}

// Write appends PCM bytes. A trailing odd byte is held until the next call
// completes its sample.
func (s *WavSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	b := p
	if len(s.pending) > 0 {
		b = append(s.pending, p...)
		s.pending = nil
	}

	n := len(b) / 2 * 2
	if n < len(b) {
		s.pending = []byte{b[n]}
	}

	if n == 0 {
		return len(p), nil
	}

	samples := make([]int, n/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(b[2*i:])))
	}
	if err := s.enc.Write(s.buffer(samples)); err != nil {
		return 0, fmt.Errorf("encode pcm: %w", err)
	}
	s.written += int64(n)

	return len(p), nil
}

func (s *WavSink) Bytes() int64 { return s.written }

// Close finalizes the WAV header and closes the file. A half sample left
// over from Write is dropped. Calling Close again is a no-op.
func (s *WavSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil

	encErr := s.enc.Close()
	fileErr := s.f.Close()
	if err := errors.Join(encErr, fileErr); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
