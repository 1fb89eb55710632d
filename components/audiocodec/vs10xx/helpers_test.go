package vs10xx

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.viam.com/test"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/engine"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sim"
	"go.viam.com/vs10xx/components/board/fake"
	"go.viam.com/vs10xx/logging"
)

// fakeEngine records primitive calls and lets tests drive the listener by hand.
type fakeEngine struct {
	mu         sync.Mutex
	conn       *sci.Conn
	listener   engine.Listener
	nextID     engine.StreamID
	calls      []string
	submitted  [][]byte
	heldOnCall []bool
	fill       []byte
	pluginPath string
	recording  bool
	closed     bool

	// Non-zero values are returned instead of succeeding.
	submitCode engine.StreamID
	pauseCode  int
	resumeCode int
	stopCode   int
	startCode  int

	// autoFinish completes a recording asynchronously as soon as it is stopped.
	autoFinish bool
}

var _ engine.Engine = (*fakeEngine)(nil)

func (fe *fakeEngine) SetListener(l engine.Listener) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.listener = l
}

func (fe *fakeEngine) record(call string) {
	fe.calls = append(fe.calls, call)
	fe.heldOnCall = append(fe.heldOnCall, fe.conn != nil && fe.conn.Bus().Held())
}

func (fe *fakeEngine) submit(call string, buf []byte) engine.StreamID {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.record(call)
	if fe.submitCode != 0 {
		return fe.submitCode
	}
	fe.submitted = append(fe.submitted, append([]byte(nil), buf...))
	id := fe.nextID
	fe.nextID++
	return id
}

func (fe *fakeEngine) PlayBuffer(ctx context.Context, buf []byte) engine.StreamID {
	return fe.submit("play", buf)
}

func (fe *fakeEngine) QueueBuffer(ctx context.Context, buf []byte) engine.StreamID {
	return fe.submit("queue", buf)
}

func (fe *fakeEngine) simple(call string, code int) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.record(call)
	return code
}

func (fe *fakeEngine) PauseBuffer(ctx context.Context) int {
	return fe.simple("pause", fe.pauseCode)
}

func (fe *fakeEngine) ResumeBuffer(ctx context.Context) int {
	return fe.simple("resume", fe.resumeCode)
}

func (fe *fakeEngine) StopBuffer(ctx context.Context) int {
	return fe.simple("stop", fe.stopCode)
}

func (fe *fakeEngine) StartRecording(ctx context.Context, pluginPath string, fill []byte) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.record("startRecording")
	if fe.startCode != 0 {
		return fe.startCode
	}
	if fe.recording {
		return engine.RecordWrongState
	}
	fe.pluginPath = pluginPath
	fe.fill = fill
	fe.recording = true
	return 0
}

func (fe *fakeEngine) StopRecording(ctx context.Context) int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.record("stopRecording")
	if !fe.recording {
		return engine.RecordWrongState
	}
	if fe.autoFinish {
		fe.recording = false
		l := fe.listener
		go l.RecordingComplete(0)
	}
	return 0
}

func (fe *fakeEngine) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.closed = true
	return nil
}

func (fe *fakeEngine) Calls() []string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]string(nil), fe.calls...)
}

func (fe *fakeEngine) HeldOnCall() []bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]bool(nil), fe.heldOnCall...)
}

func (fe *fakeEngine) Submitted() [][]byte {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([][]byte(nil), fe.submitted...)
}

func (fe *fakeEngine) getListener() engine.Listener {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.listener
}

func (fe *fakeEngine) complete(id engine.StreamID, how engine.Completion) {
	fe.getListener().PlaybackComplete(id, how)
}

// produce writes data into the fill buffer and reports it, like a full chunk.
func (fe *fakeEngine) produce(data []byte) {
	fe.mu.Lock()
	n := copy(fe.fill, data)
	l := fe.listener
	fe.mu.Unlock()
	l.RecordingData(n)
}

// finish reports the end of the recording with data as the last partial chunk.
func (fe *fakeEngine) finish(data []byte) {
	fe.mu.Lock()
	n := copy(fe.fill, data)
	fe.recording = false
	l := fe.listener
	fe.mu.Unlock()
	l.RecordingComplete(n)
}

func testConfig() Config {
	return Config{
		SPIBus:         "main",
		XCSPin:         "xcs",
		XDCSPin:        "xdcs",
		DREQPin:        "dreq",
		FlushThreshold: 8,
		FillBufferSize: 16,
	}
}

type testDevice struct {
	*Device
	engine *fakeEngine
	chip   *sim.Chip
	board  *fake.Board
}

// newUninitializedDevice wires a Device to a simulated chip and a fake engine.
func newUninitializedDevice(t *testing.T, conf Config) *testDevice {
	t.Helper()
	logger := logging.NewTestLogger(t)
	b := fake.NewBoard(logger)
	chip := sim.Attach(b, "main", "xcs", "xdcs", "dreq")
	fe := &fakeEngine{}
	d, err := New(b, conf, logger, WithEngine(func(conn *sci.Conn, _ logging.Logger) engine.Engine {
		fe.conn = conn
		return fe
	}))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	})
	return &testDevice{Device: d, engine: fe, chip: chip, board: b}
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	td := newUninitializedDevice(t, testConfig())
	test.That(t, td.Initialize(context.Background()), test.ShouldBeNil)
	return td
}

// flush waits until every event emitted so far has been delivered.
func (em *emitter) flush() {
	done := make(chan struct{})
	em.enqueue(func() { close(done) })
	<-done
}

type eventLog struct {
	d      *Device
	mu     sync.Mutex
	events []Event
}

func recordEvents(d *Device, types ...EventType) *eventLog {
	l := &eventLog{d: d}
	for _, typ := range types {
		d.Subscribe(typ, func(ev Event) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, ev)
		})
	}
	return l
}

func (l *eventLog) All() []Event {
	l.d.events.flush()
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) Types() []EventType {
	var types []EventType
	for _, ev := range l.All() {
		types = append(types, ev.Type)
	}
	return types
}

func (l *eventLog) Of(typ EventType) []Event {
	var out []Event
	for _, ev := range l.All() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) String() string {
	return fmt.Sprint(l.Types())
}
