// Package capture receives PCM audio over WebSocket connections and stores
// each logical stream as a WAV file in the owner's user directory.
package capture

// FileName is the capture file kept in each user directory. A new stream
// overwrites it.
const FileName = "command.wav"

// Format describes the PCM layout of incoming audio.
type Format struct {
	NumChannels int
	SampleRate  int
	BitDepth    int
}

// DefaultFormat is what browsers record and send: mono, 48 kHz, 16-bit.
var DefaultFormat = Format{NumChannels: 1, SampleRate: 48000, BitDepth: 16}

// Meta is the metadata a client attaches when it opens a stream.
type Meta struct {
	SessionEmail string `json:"sessionEmail"`
}
