// Package sdi is a software streaming engine for the VS10xx. One worker goroutine feeds
// submitted buffers to the chip through SDI and drains the Ogg encoder while recording.
package sdi

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/engine"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/logging"
	"go.viam.com/vs10xx/utils"
)

// Encoder setup written before starting a recording plugin.
const (
	recordAICtrl0 = 0
	recordAICtrl1 = 0 // automatic gain control
	recordAICtrl2 = 4096
	recordAICtrl3 = 0

	encoderStop = 1 << 0
	encoderDone = 1 << 1
)

const (
	defaultMaxQueued    = 64
	defaultPollInterval = 5 * time.Millisecond
)

// Options tune an Engine.
type Options struct {
	// MaxQueued bounds the number of streams waiting to play.
	MaxQueued int
	// PollInterval is how long the recorder waits on an empty encoder FIFO.
	PollInterval time.Duration
	// DecodeClockF is written back to CLOCKF after a recording.
	DecodeClockF uint16
	Clock        clock.Clock
}

type stream struct {
	id   engine.StreamID
	data []byte
	off  int
}

type recording struct {
	fill     []byte
	n        int
	stopping bool
}

// Engine implements engine.Engine over an sci.Conn.
type Engine struct {
	conn    *sci.Conn
	opts    Options
	clk     clock.Clock
	logger  logging.Logger
	wake    chan struct{}
	workers *utils.StoppableWorkers
	played  atomic.Int64

	// recMu serializes StartRecording and StopRecording.
	recMu sync.Mutex

	mu       sync.Mutex
	listener engine.Listener
	nextID   engine.StreamID
	streams  []*stream
	paused   bool
	rec      *recording
	notes    []func(engine.Listener)
	closed   bool
}

var _ engine.Engine = (*Engine)(nil)

// New starts an engine on conn.
func New(conn *sci.Conn, opts Options, logger logging.Logger) *Engine {
	if opts.MaxQueued <= 0 {
		opts.MaxQueued = defaultMaxQueued
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.DecodeClockF == 0 {
		opts.DecodeClockF = sci.ClockFDecode
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		conn:   conn,
		opts:   opts,
		clk:    clk,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	e.workers = utils.NewStoppableWorkers(e.run)
	return e
}

// SetListener sets who hears about completions and recorded data.
func (e *Engine) SetListener(l engine.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// BytesPlayed is the number of audio bytes fed to the chip so far.
func (e *Engine) BytesPlayed() int64 {
	return e.played.Load()
}

// PlayBuffer drops everything submitted so far and starts buf.
func (e *Engine) PlayBuffer(ctx context.Context, buf []byte) engine.StreamID {
	e.mu.Lock()
	if code, ok := e.checkSubmit(buf); !ok {
		e.mu.Unlock()
		return code
	}
	e.dropStreamsLocked()
	e.paused = false
	id := e.addStreamLocked(buf)
	e.mu.Unlock()
	e.poke()
	return id
}

// QueueBuffer plays buf after everything already submitted.
func (e *Engine) QueueBuffer(ctx context.Context, buf []byte) engine.StreamID {
	e.mu.Lock()
	if code, ok := e.checkSubmit(buf); !ok {
		e.mu.Unlock()
		return code
	}
	if len(e.streams) >= e.opts.MaxQueued {
		e.mu.Unlock()
		return engine.OutOfMemory
	}
	id := e.addStreamLocked(buf)
	e.mu.Unlock()
	e.poke()
	return id
}

func (e *Engine) checkSubmit(buf []byte) (engine.StreamID, bool) {
	switch {
	case e.closed:
		return engine.NoInterrupt, false
	case e.rec != nil, len(buf) == 0:
		return engine.InvalidState, false
	default:
		return 0, true
	}
}

func (e *Engine) addStreamLocked(buf []byte) engine.StreamID {
	data := make([]byte, len(buf))
	copy(data, buf)
	id := e.nextID
	e.nextID++
	e.streams = append(e.streams, &stream{id: id, data: data})
	return id
}

func (e *Engine) dropStreamsLocked() bool {
	dropped := len(e.streams) > 0
	for _, s := range e.streams {
		e.notifyPlaybackLocked(s.id, engine.Dropped)
	}
	e.streams = nil
	return dropped
}

// PauseBuffer holds playback where it is.
func (e *Engine) PauseBuffer(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.paused || len(e.streams) == 0 {
		return -1
	}
	e.paused = true
	return 0
}

// ResumeBuffer continues paused playback.
func (e *Engine) ResumeBuffer(ctx context.Context) int {
	e.mu.Lock()
	if e.closed || !e.paused || len(e.streams) == 0 {
		e.mu.Unlock()
		return -1
	}
	e.paused = false
	e.mu.Unlock()
	e.poke()
	return 0
}

// StopBuffer drops everything submitted and cancels decoding on the chip.
func (e *Engine) StopBuffer(ctx context.Context) int {
	e.mu.Lock()
	if e.rec != nil {
		e.mu.Unlock()
		return -1
	}
	dropped := e.dropStreamsLocked()
	e.paused = false
	e.mu.Unlock()
	e.poke()

	if !dropped {
		return 0
	}
	mode, err := e.conn.ReadRegister16(ctx, sci.Mode)
	if err == nil {
		err = e.conn.WriteRegister16(ctx, sci.Mode, mode|sci.SMCancel)
	}
	if err != nil {
		e.logger.Warnw("cannot cancel decoding", "error", err)
		return -1
	}
	return 0
}

// StartRecording loads the encoder plugin at pluginPath and starts recording into fill.
func (e *Engine) StartRecording(ctx context.Context, pluginPath string, fill []byte) int {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	e.mu.Lock()
	busy := e.closed || e.rec != nil || len(e.streams) > 0
	e.mu.Unlock()
	switch {
	case busy:
		return engine.RecordWrongState
	case len(fill) < 2:
		return engine.RecordOutOfMemory
	}

	plugin, err := ReadPlugin(pluginPath)
	if err != nil {
		e.logger.Warnw("cannot load recording plugin", "path", pluginPath, "error", err)
		return engine.RecordInvalidPlugin
	}
	if err := e.setupEncoder(ctx, plugin); err != nil {
		e.logger.Warnw("cannot start encoder", "error", err)
		if err := e.conn.SoftReset(ctx, sci.ModeDefault); err != nil {
			e.logger.Debugw("reset after failed encoder start", "error", err)
		}
		return engine.RecordWrongState
	}

	e.mu.Lock()
	e.rec = &recording{fill: fill[:len(fill)&^1]}
	e.mu.Unlock()
	e.poke()
	return 0
}

func (e *Engine) setupEncoder(ctx context.Context, plugin *Plugin) error {
	if err := e.conn.WriteRegister16(ctx, sci.ClockF, sci.ClockFRecord); err != nil {
		return err
	}
	if err := e.conn.WriteRegister16(ctx, sci.Bass, 0); err != nil {
		return err
	}
	if err := e.conn.SoftReset(ctx, sci.ModeDefault); err != nil {
		return err
	}
	if err := plugin.Load(ctx, e.conn); err != nil {
		return err
	}
	for _, w := range []struct {
		addr byte
		val  uint16
	}{
		{sci.AICtrl0, recordAICtrl0},
		{sci.AICtrl1, recordAICtrl1},
		{sci.AICtrl2, recordAICtrl2},
		{sci.AICtrl3, recordAICtrl3},
		{sci.Mode, sci.ModeRecord},
		{sci.AIAddr, plugin.ExecAddr},
	} {
		if err := e.conn.WriteRegister16(ctx, w.addr, w.val); err != nil {
			return err
		}
	}
	return nil
}

// StopRecording asks the encoder to finish. RecordingComplete follows once it has drained.
func (e *Engine) StopRecording(ctx context.Context) int {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	e.mu.Lock()
	rec := e.rec
	if rec == nil || rec.stopping {
		e.mu.Unlock()
		return engine.RecordWrongState
	}
	rec.stopping = true
	e.mu.Unlock()

	ctl, err := e.conn.ReadRegister16(ctx, sci.AICtrl3)
	if err == nil {
		err = e.conn.WriteRegister16(ctx, sci.AICtrl3, ctl|encoderStop)
	}
	if err != nil {
		e.logger.Warnw("cannot stop encoder", "error", err)
		e.mu.Lock()
		rec.stopping = false
		e.mu.Unlock()
		return engine.RecordWrongState
	}
	e.poke()
	return 0
}

// Close stops the worker. Streams still submitted complete as dropped.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.dropStreamsLocked()
	e.mu.Unlock()
	e.workers.Stop()
	e.deliver()
	return nil
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) notifyPlaybackLocked(id engine.StreamID, how engine.Completion) {
	e.notes = append(e.notes, func(l engine.Listener) { l.PlaybackComplete(id, how) })
}

func (e *Engine) notifyLocked(note func(engine.Listener)) {
	e.notes = append(e.notes, note)
}

// deliver hands queued notifications to the listener with no lock held.
func (e *Engine) deliver() {
	e.mu.Lock()
	notes, l := e.notes, e.listener
	e.notes = nil
	e.mu.Unlock()
	if l == nil {
		return
	}
	for _, note := range notes {
		note(l)
	}
}

const waitForWake = -1

func (e *Engine) run(ctx context.Context) {
	for {
		e.deliver()
		if ctx.Err() != nil {
			return
		}
		wait := e.step(ctx)
		if wait == 0 {
			continue
		}
		var timer *clock.Timer
		var timeout <-chan time.Time
		if wait > 0 {
			timer = e.clk.Timer(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
		case <-e.wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// step does one unit of work and returns how long to wait before the next.
func (e *Engine) step(ctx context.Context) time.Duration {
	e.mu.Lock()
	if rec := e.rec; rec != nil {
		e.mu.Unlock()
		return e.recordStep(ctx, rec)
	}
	if e.paused || len(e.streams) == 0 {
		e.mu.Unlock()
		return waitForWake
	}
	s := e.streams[0]
	end := s.off + sci.SDIChunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.off:end]
	e.mu.Unlock()

	err := e.conn.WriteData(ctx, chunk)

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.streams) == 0 || e.streams[0] != s {
		// dropped while we were writing
		return 0
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		e.logger.Warnw("streaming failed", "stream", s.id, "error", err)
		e.streams = e.streams[1:]
		e.notifyPlaybackLocked(s.id, engine.Failed)
		return 0
	}
	e.played.Add(int64(len(chunk)))
	s.off = end
	if s.off >= len(s.data) {
		e.streams = e.streams[1:]
		e.notifyPlaybackLocked(s.id, engine.Played)
	}
	return 0
}

func (e *Engine) recordStep(ctx context.Context, rec *recording) time.Duration {
	words, err := e.conn.ReadRegister16(ctx, sci.HDAT1)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warnw("cannot poll encoder", "error", err)
		}
		return e.opts.PollInterval
	}

	if words == 0 {
		e.mu.Lock()
		stopping := rec.stopping
		e.mu.Unlock()
		if !stopping {
			return e.opts.PollInterval
		}
		ctl, err := e.conn.ReadRegister16(ctx, sci.AICtrl3)
		if err != nil {
			return e.opts.PollInterval
		}
		if ctl&encoderDone == 0 {
			return e.opts.PollInterval
		}
		e.finishRecording(ctx, rec)
		return 0
	}

	space := (len(rec.fill) - rec.n) / 2
	if int(words) > space {
		words = uint16(space)
	}
	for i := 0; i < int(words); i++ {
		w, err := e.conn.ReadRegister16(ctx, sci.HDAT0)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Warnw("cannot read encoder data", "error", err)
			}
			return e.opts.PollInterval
		}
		rec.fill[rec.n] = byte(w >> 8)
		rec.fill[rec.n+1] = byte(w)
		rec.n += 2
	}
	if rec.n == len(rec.fill) {
		n := rec.n
		rec.n = 0
		e.mu.Lock()
		e.notifyLocked(func(l engine.Listener) { l.RecordingData(n) })
		e.mu.Unlock()
	}
	return 0
}

func (e *Engine) finishRecording(ctx context.Context, rec *recording) {
	if err := e.conn.SoftReset(ctx, sci.ModeDefault); err != nil {
		e.logger.Warnw("cannot reset after recording", "error", err)
	} else if err := e.conn.WriteRegister16(ctx, sci.ClockF, e.opts.DecodeClockF); err != nil {
		e.logger.Warnw("cannot restore clock after recording", "error", err)
	}
	n := rec.n
	e.mu.Lock()
	e.rec = nil
	e.notifyLocked(func(l engine.Listener) { l.RecordingComplete(n) })
	e.mu.Unlock()
}
