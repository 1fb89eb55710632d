package vs10xx_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sim"
	"go.viam.com/vs10xx/components/board/fake"
	"go.viam.com/vs10xx/logging"
)

// voicePlugin loads two words of instruction memory and starts at 0x50.
var voicePlugin = []byte{
	'P', '&', 'H',
	0, 0x00, 0x04, 0x00, 0x10, 0x12, 0x34, 0x56, 0x78,
	3, 0x00, 0x00, 0x00, 0x50,
}

type chunkLog struct {
	mu     sync.Mutex
	data   [][]byte
	stops  int
	events []vs10xx.EventType
}

func (l *chunkLog) handle(ev vs10xx.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
	switch ev.Type {
	case vs10xx.EventData:
		l.data = append(l.data, ev.Data)
	case vs10xx.EventStopRecording:
		l.stops++
	}
}

func (l *chunkLog) counts() (chunks, stops int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data), l.stops
}

func connectSimulated(t *testing.T) (*vs10xx.Device, *sim.Chip, *fake.Board) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	b := fake.NewBoard(logger)
	chip := sim.Attach(b, "spi0", "cs", "dcs", "dreq")

	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "voice.img"), voicePlugin, 0o600), test.ShouldBeNil)

	d, err := vs10xx.Connect(context.Background(), b, vs10xx.Config{
		SPIBus:         "spi0",
		XCSPin:         "cs",
		XDCSPin:        "dcs",
		DREQPin:        "dreq",
		PluginDir:      dir,
		FillBufferSize: 16,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	})
	return d, chip, b
}

func TestSimulatedVolume(t *testing.T) {
	ctx := context.Background()
	d, chip, _ := connectSimulated(t)

	test.That(t, d.SetVolume(ctx, 0.5), test.ShouldBeNil)
	left, right, err := d.Attenuation(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left, test.ShouldEqual, 127)
	test.That(t, right, test.ShouldEqual, 127)
	test.That(t, chip.Register(sci.Vol), test.ShouldEqual, 127<<8|127)
}

func TestSimulatedRecording(t *testing.T) {
	ctx := context.Background()
	d, chip, _ := connectSimulated(t)

	test.That(t, d.SetInput(ctx, vs10xx.InputLineIn), test.ShouldBeNil)

	log := &chunkLog{}
	for _, typ := range []vs10xx.EventType{vs10xx.EventStartRecording, vs10xx.EventData, vs10xx.EventStopRecording} {
		d.Subscribe(typ, log.handle)
	}

	session, err := d.StartRecording(ctx, "voice")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, session.Profile, test.ShouldEqual, "voice")
	test.That(t, chip.WRAM(0x8010), test.ShouldEqual, 0x1234)
	test.That(t, chip.Register(sci.AIAddr), test.ShouldEqual, 0x50)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		chunks, _ := log.counts()
		test.That(tb, chunks, test.ShouldBeGreaterThan, 0)
	})
	test.That(t, d.StopRecording(ctx), test.ShouldBeNil)
	test.That(t, chip.Recording(), test.ShouldBeFalse)
	test.That(t, chip.Register(sci.ClockF), test.ShouldEqual, sci.ClockFDecode)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		_, stops := log.counts()
		test.That(tb, stops, test.ShouldEqual, 1)
	})
	chunks, _ := log.counts()
	log.mu.Lock()
	first := log.data[0]
	events := append([]vs10xx.EventType(nil), log.events...)
	log.mu.Unlock()
	test.That(t, first, test.ShouldResemble, []byte{0, 1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7, 0, 8})
	test.That(t, events[0], test.ShouldEqual, vs10xx.EventStartRecording)
	test.That(t, events[len(events)-1], test.ShouldEqual, vs10xx.EventStopRecording)

	// nothing arrives once stopped
	time.Sleep(20 * time.Millisecond)
	after, stops := log.counts()
	test.That(t, after, test.ShouldEqual, chunks)
	test.That(t, stops, test.ShouldEqual, 1)
	test.That(t, d.Recording(), test.ShouldBeNil)
}

func TestSimulatedPlayback(t *testing.T) {
	ctx := context.Background()
	d, chip, b := connectSimulated(t)

	audio := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 25)
	first, err := d.Queue(ctx, audio[:60])
	test.That(t, err, test.ShouldBeNil)
	second, err := d.Queue(ctx, audio[60:])
	test.That(t, err, test.ShouldBeNil)

	test.That(t, first.Wait(ctx), test.ShouldBeNil)
	test.That(t, second.Wait(ctx), test.ShouldBeNil)
	test.That(t, first.Dropped(), test.ShouldBeFalse)
	test.That(t, second.Dropped(), test.ShouldBeFalse)
	test.That(t, chip.SDIData(), test.ShouldResemble, audio)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, d.BusHeld(), test.ShouldBeFalse)
		test.That(tb, b.SPI("spi0").IsOpen(), test.ShouldBeFalse)
	})

	s := d.NewPlayStream(ctx)
	_, err = s.Write([]byte{1, 2, 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)
	test.That(t, s.Wait(ctx), test.ShouldBeNil)
	test.That(t, chip.SDIData()[len(audio):], test.ShouldResemble, []byte{1, 2, 3})
}

func TestSimulatedStopFromDataHandler(t *testing.T) {
	ctx := context.Background()
	d, chip, _ := connectSimulated(t)

	var once sync.Once
	stopped := make(chan error, 1)
	d.Subscribe(vs10xx.EventData, func(ev vs10xx.Event) {
		once.Do(func() { stopped <- d.StopRecording(ctx) })
	})
	ended := make(chan struct{})
	d.Subscribe(vs10xx.EventStopRecording, func(vs10xx.Event) { close(ended) })

	_, err := d.StartRecording(ctx, "voice")
	test.That(t, err, test.ShouldBeNil)

	select {
	case err := <-stopped:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("StopRecording called from a data handler never returned")
	}
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("no stopRecording event")
	}
	test.That(t, chip.Recording(), test.ShouldBeFalse)
	test.That(t, d.Recording(), test.ShouldBeNil)
}
