// Package engine defines the command surface of a VS10xx streaming engine: the unit that
// actually moves audio buffers to and from the chip and reports back out of band.
package engine

import "context"

// A StreamID names a submitted buffer. Negative values are failure codes.
type StreamID int

// Play and queue failure codes.
const (
	InvalidState StreamID = -1
	NoInterrupt  StreamID = -2
	OutOfMemory  StreamID = -3
)

// Recording failure codes.
const (
	RecordOutOfMemory   = -1
	RecordInvalidPlugin = -2
	RecordWrongState    = -3
)

// A Completion says how a stream ended.
type Completion int

// Stream completions.
const (
	// Played means every byte reached the chip.
	Played Completion = iota
	// Dropped means a later play, a stop or closing the engine discarded the stream.
	Dropped
	// Failed means a bus transfer failed mid-stream.
	Failed
)

func (c Completion) String() string {
	switch c {
	case Played:
		return "played"
	case Dropped:
		return "dropped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// A Listener receives engine notifications. An engine never calls its listener from inside
// one of its own primitives, nor while it is inside a bus transfer.
type Listener interface {
	// PlaybackComplete reports how a stream ended.
	PlaybackComplete(id StreamID, how Completion)
	// RecordingData reports that the first n bytes of the fill buffer hold recorded data. The
	// engine reuses the fill buffer as soon as the call returns.
	RecordingData(n int)
	// RecordingComplete reports the end of a recording. The first n bytes of the fill buffer
	// hold the last chunk.
	RecordingComplete(n int)
}

// An Engine streams buffers to the chip and records from it.
//
// Primitives return immediately; completion arrives through the Listener.
type Engine interface {
	SetListener(l Listener)

	// PlayBuffer drops anything playing or queued and starts buf.
	PlayBuffer(ctx context.Context, buf []byte) StreamID
	// QueueBuffer plays buf after everything already submitted.
	QueueBuffer(ctx context.Context, buf []byte) StreamID
	// PauseBuffer returns a negative value when nothing is playing.
	PauseBuffer(ctx context.Context) int
	// ResumeBuffer returns a negative value when nothing is paused.
	ResumeBuffer(ctx context.Context) int
	// StopBuffer returns a negative value when the engine cannot stop now.
	StopBuffer(ctx context.Context) int

	// StartRecording loads the encoder plugin at pluginPath and starts filling fill.
	StartRecording(ctx context.Context, pluginPath string, fill []byte) int
	// StopRecording asks the encoder to finish. RecordingComplete follows a non-negative return.
	StopRecording(ctx context.Context) int

	Close() error
}
