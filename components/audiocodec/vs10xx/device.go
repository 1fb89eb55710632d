// Package vs10xx drives a VLSI VS10xx audio codec attached over SPI. A Device initializes the
// chip, serializes every command against the shared bus, and turns the streaming engine's
// out-of-band notifications into track completions and events.
package vs10xx

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/engine"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sdi"
	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
	"go.viam.com/vs10xx/utils"
)

// State is where a Device is in its lifecycle.
type State int32

// Device states, in initialization order.
const (
	Uninitialized State = iota
	SoftResetting
	VersionChecking
	ClockConfiguring
	DefaultIOConfiguring
	Ready
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SoftResetting:
		return "soft-resetting"
	case VersionChecking:
		return "version-checking"
	case ClockConfiguring:
		return "clock-configuring"
	case DefaultIOConfiguring:
		return "default-io-configuring"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// An Option customizes a Device.
type Option func(*options)

type options struct {
	newEngine func(conn *sci.Conn, logger logging.Logger) engine.Engine
	clock     clock.Clock
}

// WithEngine replaces the software streaming engine.
func WithEngine(newEngine func(conn *sci.Conn, logger logging.Logger) engine.Engine) Option {
	return func(o *options) {
		o.newEngine = newEngine
	}
}

// WithClock sets the clock used for DREQ timeouts and recording timestamps.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// A Device is one VS10xx.
type Device struct {
	conf    Config
	logger  logging.Logger
	clk     clock.Clock
	bus     *sci.Bus
	conn    *sci.Conn
	engine  engine.Engine
	serial  *Serializer
	events  *emitter
	workers *utils.StoppableWorkers
	state   atomic.Int32

	mu      sync.Mutex
	initErr error
	input   Input
	output  Output

	tracksMu sync.Mutex
	tracks   map[engine.StreamID]*Track

	recMu sync.Mutex
	rec   *activeRecording
	fill  []byte

	closeOnce sync.Once
	closeErr  error
}

// New wires a Device to the bus and pins named in conf. The chip is not touched until
// Initialize or Start.
func New(b board.Board, conf Config, logger logging.Logger, opts ...Option) (*Device, error) {
	if err := conf.Validate("vs10xx"); err != nil {
		return nil, err
	}
	conf = conf.withDefaults()

	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.newEngine == nil {
		o.newEngine = func(conn *sci.Conn, logger logging.Logger) engine.Engine {
			return sdi.New(conn, sdi.Options{DecodeClockF: sci.ClockFDecode, Clock: o.clock}, logger)
		}
	}

	spi, ok := b.SPIByName(conf.SPIBus)
	if !ok {
		return nil, errors.Errorf("no SPI bus named %q", conf.SPIBus)
	}
	var pins sci.Pins
	for _, p := range []struct {
		name string
		pin  *board.GPIOPin
	}{
		{conf.XCSPin, &pins.XCS},
		{conf.XDCSPin, &pins.XDCS},
		{conf.DREQPin, &pins.DREQ},
	} {
		pin, err := b.GPIOPinByName(p.name)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot get pin %q", p.name)
		}
		*p.pin = pin
	}

	bus := sci.NewBus(spi)
	conn, err := sci.NewConn(bus, pins, sci.Options{
		ClockHz:     conf.InitialClockHz,
		ChipSelect:  conf.SPIChipSelect,
		DREQTimeout: conf.dreqTimeout(),
		Clock:       o.clock,
	}, logger.Sublogger("sci"))
	if err != nil {
		return nil, err
	}

	d := &Device{
		conf:    conf,
		logger:  logger,
		clk:     o.clock,
		bus:     bus,
		conn:    conn,
		serial:  NewSerializer(logger.Sublogger("serializer")),
		events:  newEmitter(),
		workers: utils.NewStoppableWorkers(),
		tracks:  map[engine.StreamID]*Track{},
		fill:    make([]byte, conf.FillBufferSize),
		input:   InputMicrophone,
		output:  OutputHeadphones,
	}
	d.engine = o.newEngine(conn, logger.Sublogger("sdi"))
	d.engine.SetListener(engineListener{d})
	return d, nil
}

// Connect creates a Device and initializes it.
func Connect(ctx context.Context, b board.Board, conf Config, logger logging.Logger, opts ...Option) (*Device, error) {
	d, err := New(b, conf, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(ctx); err != nil {
		return nil, multierr.Combine(err, d.Close(ctx))
	}
	return d, nil
}

// Start initializes the Device in the background. Success is reported as a ready event and
// failure as an error event.
func (d *Device) Start() {
	d.workers.Add(func(ctx context.Context) {
		if err := d.Initialize(ctx); err != nil {
			d.events.emit(Event{Type: EventError, Err: err})
		}
	})
}

// State returns the current lifecycle state.
func (d *Device) State() State {
	return State(d.state.Load())
}

func (d *Device) setState(s State) {
	d.state.Store(int32(s))
}

// Conn exposes the register connection, mostly for diagnostics.
func (d *Device) Conn() *sci.Conn {
	return d.conn
}

// checkReady reports why operations cannot run, if they cannot.
func (d *Device) checkReady() error {
	switch d.State() {
	case Ready:
		return nil
	case Failed:
		d.mu.Lock()
		defer d.mu.Unlock()
		return &notReadyError{cause: d.initErr}
	case Closed:
		return ErrClosed
	default:
		return errors.Wrapf(ErrNotReady, "codec is %s", d.State())
	}
}

// admit rejects operations before they are queued when they could never run. Operations placed
// while initialization is in progress queue up behind it.
func (d *Device) admit() error {
	switch d.State() {
	case Uninitialized, Failed, Closed:
		return d.checkReady()
	default:
		return nil
	}
}

// do runs fn in the serializer once the chip is ready.
func (d *Device) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := d.admit(); err != nil {
		return err
	}
	return d.serial.Do(ctx, func(ctx context.Context) error {
		if err := d.checkReady(); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// Close stops the serializer and the engine and gives the bus back. Pending tracks and an
// active recording are resolved with ErrClosed.
func (d *Device) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.setState(Closed)
		err := d.engine.Close()

		d.tracksMu.Lock()
		tracks := d.tracks
		d.tracks = map[engine.StreamID]*Track{}
		d.tracksMu.Unlock()
		for _, t := range tracks {
			t.resolve(ErrClosed, true)
		}

		d.recMu.Lock()
		rec := d.rec
		d.rec = nil
		d.recMu.Unlock()
		if rec != nil {
			rec.finish()
		}

		// The running entry may be waiting on the recording finished above.
		d.serial.Close()
		d.workers.Stop()
		d.events.close()
		d.closeErr = multierr.Combine(err, d.bus.Release())
	})
	return d.closeErr
}

// engineListener keeps the engine callbacks off the Device's exported surface.
type engineListener struct {
	d *Device
}

func (l engineListener) PlaybackComplete(id engine.StreamID, how engine.Completion) {
	l.d.playbackComplete(id, how)
}

func (l engineListener) RecordingData(n int) {
	l.d.recordingData(n)
}

func (l engineListener) RecordingComplete(n int) {
	l.d.recordingComplete(n)
}
