package vs10xx

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// A PlayStream queues whatever is written to it. Writes are collected until they reach the
// flush threshold, since the chip will not play very short clips on their own.
type PlayStream struct {
	d         *Device
	ctx       context.Context
	threshold int

	mu     sync.Mutex
	buf    []byte
	tracks []*Track
	closed bool
}

var _ io.WriteCloser = (*PlayStream)(nil)

// NewPlayStream returns a stream that queues on d. ctx bounds every Queue it makes.
func (d *Device) NewPlayStream(ctx context.Context) *PlayStream {
	return &PlayStream{d: d, ctx: ctx, threshold: d.conf.FlushThreshold}
}

// Write buffers p, queueing once enough has been collected.
func (s *PlayStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("write to closed play stream")
	}
	s.buf = append(s.buf, p...)
	if len(s.buf) < s.threshold {
		return len(p), nil
	}
	if err := s.flushLocked(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close queues whatever is left, however short.
func (s *PlayStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked()
}

func (s *PlayStream) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}
	buf := s.buf
	s.buf = nil
	track, err := s.d.Queue(s.ctx, buf)
	if err != nil {
		return err
	}
	s.tracks = append(s.tracks, track)
	return nil
}

// Wait blocks until every queued track is done and combines their errors.
func (s *PlayStream) Wait(ctx context.Context) error {
	s.mu.Lock()
	tracks := append([]*Track(nil), s.tracks...)
	s.mu.Unlock()
	var err error
	for _, t := range tracks {
		err = multierr.Append(err, t.Wait(ctx))
	}
	return err
}

// A RecordStream yields the chunks of one recording. It ends with io.EOF once the recording
// stops and cannot be restarted.
type RecordStream struct {
	d       *Device
	subs    []Subscription
	session *RecordingSession
	notify  chan struct{}

	mu      sync.Mutex
	chunks  [][]byte
	ended   bool
	partial []byte
	closed  bool
}

var _ io.ReadCloser = (*RecordStream)(nil)

// NewRecordStream starts recording with profile and returns the stream of its chunks.
func (d *Device) NewRecordStream(ctx context.Context, profile string) (*RecordStream, error) {
	s := &RecordStream{d: d, notify: make(chan struct{}, 1)}
	// The session is only known once recording starts, and data may arrive before
	// StartRecording returns.
	var sessionMu sync.Mutex
	var session *RecordingSession
	ours := func(ev Event) bool {
		sessionMu.Lock()
		defer sessionMu.Unlock()
		if session == nil && ev.Type == EventStartRecording {
			session = ev.Session
		}
		return session != nil && ev.Session == session
	}
	s.subs = []Subscription{
		d.Subscribe(EventStartRecording, func(ev Event) { ours(ev) }),
		d.Subscribe(EventData, func(ev Event) {
			if ours(ev) {
				s.push(ev.Data)
			}
		}),
		d.Subscribe(EventStopRecording, func(ev Event) {
			if ours(ev) {
				s.end()
			}
		}),
	}

	started, err := d.StartRecording(ctx, profile)
	if err != nil {
		s.unsubscribe()
		return nil, err
	}
	s.session = started
	return s, nil
}

// Session is the recording this stream reads.
func (s *RecordStream) Session() *RecordingSession {
	return s.session
}

func (s *RecordStream) push(chunk []byte) {
	s.mu.Lock()
	if !s.ended {
		s.chunks = append(s.chunks, chunk)
	}
	s.mu.Unlock()
	s.wake()
}

func (s *RecordStream) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.unsubscribe()
	s.wake()
}

func (s *RecordStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the next recorded chunk, or io.EOF once the recording has stopped and every
// chunk was returned.
func (s *RecordStream) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.chunks) > 0 {
			chunk := s.chunks[0]
			s.chunks = s.chunks[1:]
			s.mu.Unlock()
			return chunk, nil
		}
		if s.ended {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Read reads recorded bytes, blocking until some are available.
func (s *RecordStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	partial := s.partial
	s.mu.Unlock()
	if len(partial) == 0 {
		chunk, err := s.Next(context.Background())
		if err != nil {
			return 0, err
		}
		partial = chunk
	}
	n := copy(p, partial)
	s.mu.Lock()
	s.partial = partial[n:]
	s.mu.Unlock()
	return n, nil
}

// Close stops the recording if it is still running. Chunks recorded before the stop can still
// be read; the stream ends once the recording has stopped.
func (s *RecordStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return nil
	}

	err := s.d.StopRecording(context.Background())
	if err == nil {
		// the stopRecording event ends the stream
		return nil
	}
	if errors.Is(err, ErrWrongState) {
		err = nil
	}
	s.end()
	return err
}

func (s *RecordStream) unsubscribe() {
	for _, sub := range s.subs {
		s.d.Unsubscribe(sub)
	}
}
