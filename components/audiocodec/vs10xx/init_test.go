package vs10xx

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/components/board/fake"
	"go.viam.com/vs10xx/logging"
)

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		events := recordEvents(td.Device, EventReady, EventError)
		test.That(t, td.State(), test.ShouldEqual, Uninitialized)

		test.That(t, td.Initialize(ctx), test.ShouldBeNil)
		test.That(t, td.State(), test.ShouldEqual, Ready)
		test.That(t, events.Types(), test.ShouldResemble, []EventType{EventReady})

		test.That(t, td.chip.Resets(), test.ShouldEqual, 1)
		test.That(t, td.chip.Register(sci.Mode), test.ShouldEqual, sci.ModeDefault)
		test.That(t, td.chip.Register(sci.ClockF), test.ShouldEqual, sci.ClockFDecode)
		test.That(t, td.Conn().ClockSpeed(), test.ShouldEqual, DefaultFastClockHz)
		dir, out := td.chip.GPIO()
		test.That(t, dir, test.ShouldEqual, 1<<7|1<<5)
		test.That(t, out, test.ShouldEqual, 0)
		test.That(t, td.Input(), test.ShouldEqual, InputMicrophone)
		test.That(t, td.Output(), test.ShouldEqual, OutputHeadphones)

		// a second call changes nothing
		test.That(t, td.Initialize(ctx), test.ShouldBeNil)
		test.That(t, td.chip.Resets(), test.ShouldEqual, 1)
		test.That(t, len(events.All()), test.ShouldEqual, 1)
	})

	t.Run("configured settings", func(t *testing.T) {
		conf := testConfig()
		half := 0.5
		conf.Volume = &half
		conf.Input = "lineIn"
		conf.Output = "line-out"
		td := newUninitializedDevice(t, conf)
		test.That(t, td.Initialize(ctx), test.ShouldBeNil)

		test.That(t, td.chip.Register(sci.Vol), test.ShouldEqual, 127<<8|127)
		_, out := td.chip.GPIO()
		test.That(t, out, test.ShouldEqual, 1<<7|1<<5)
		test.That(t, td.Input(), test.ShouldEqual, InputLineIn)
		test.That(t, td.Output(), test.ShouldEqual, OutputLineOut)
	})

	t.Run("unsupported version", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		td.chip.SetVersion(3)
		events := recordEvents(td.Device, EventReady, EventError)

		err := td.Initialize(ctx)
		var uve *UnsupportedVersionError
		test.That(t, errors.As(err, &uve), test.ShouldBeTrue)
		test.That(t, uve.Version, test.ShouldEqual, 3)
		test.That(t, td.State(), test.ShouldEqual, Failed)
		test.That(t, events.All(), test.ShouldBeEmpty)
		test.That(t, td.chip.Register(sci.ClockF), test.ShouldEqual, 0)

		err = td.SetVolume(ctx, 0.5)
		test.That(t, errors.Is(err, ErrNotReady), test.ShouldBeTrue)
		test.That(t, errors.As(err, &uve), test.ShouldBeTrue)
		_, err = td.Play(ctx, []byte{1})
		test.That(t, errors.Is(err, ErrNotReady), test.ShouldBeTrue)
		test.That(t, td.engine.Calls(), test.ShouldBeEmpty)

		test.That(t, errors.Is(td.Initialize(ctx), ErrNotReady), test.ShouldBeTrue)
	})

	t.Run("bus failure", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		td.board.SPI("main").FailTransfers(errors.New("no chip"))
		err := td.Initialize(ctx)
		var bte *sci.BusTransferError
		test.That(t, errors.As(err, &bte), test.ShouldBeTrue)
		test.That(t, td.State(), test.ShouldEqual, Failed)
	})

	t.Run("not initialized", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		test.That(t, errors.Is(td.SetVolume(ctx, 1), ErrNotReady), test.ShouldBeTrue)
		test.That(t, errors.Is(td.StopRecording(ctx), ErrNotReady), test.ShouldBeTrue)
		test.That(t, len(td.chip.Writes()), test.ShouldEqual, 0)
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("ready event", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		events := recordEvents(td.Device, EventReady, EventError)
		td.Start()
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			test.That(tb, events.Types(), test.ShouldResemble, []EventType{EventReady})
		})
		test.That(t, td.State(), test.ShouldEqual, Ready)
	})

	t.Run("error event", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		td.chip.SetVersion(7)
		events := recordEvents(td.Device, EventReady, EventError)
		td.Start()
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			test.That(tb, events.Types(), test.ShouldResemble, []EventType{EventError})
		})
		var uve *UnsupportedVersionError
		test.That(t, errors.As(events.All()[0].Err, &uve), test.ShouldBeTrue)
		time.Sleep(10 * time.Millisecond)
		test.That(t, len(events.All()), test.ShouldEqual, 1)
	})

	t.Run("operations queue behind initialization", func(t *testing.T) {
		td := newUninitializedDevice(t, testConfig())
		dreq := td.board.GPIOPin("dreq")
		test.That(t, dreq.Set(ctx, false, nil), test.ShouldBeNil)

		td.Start()
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			test.That(tb, td.State(), test.ShouldNotEqual, Uninitialized)
		})
		errCh := make(chan error, 1)
		go func() {
			errCh <- td.SetVolume(ctx, 0.5)
		}()
		time.Sleep(10 * time.Millisecond)
		test.That(t, dreq.Set(ctx, true, nil), test.ShouldBeNil)
		test.That(t, <-errCh, test.ShouldBeNil)

		writes := td.chip.Writes()
		last := writes[len(writes)-1]
		test.That(t, last.Addr, test.ShouldEqual, sci.Vol)
		test.That(t, last.Value, test.ShouldEqual, 127<<8|127)
		test.That(t, td.State(), test.ShouldEqual, Ready)
	})
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	_, err := Connect(ctx, fake.NewBoard(logger), Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "spi_bus")

	// nothing answers on the bus, so the version check fails
	b := fake.NewBoard(logger)
	test.That(t, b.GPIOPin("dreq").Set(ctx, true, nil), test.ShouldBeNil)
	_, err = Connect(ctx, b, testConfig(), logger)
	var uve *UnsupportedVersionError
	test.That(t, errors.As(err, &uve), test.ShouldBeTrue)
	test.That(t, uve.Version, test.ShouldEqual, 15)
	test.That(t, b.SPI("main").IsOpen(), test.ShouldBeFalse)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	td := newTestDevice(t)
	track, err := td.Queue(ctx, []byte{1, 2, 3})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, td.Close(ctx), test.ShouldBeNil)
	test.That(t, td.State(), test.ShouldEqual, Closed)
	test.That(t, track.Wait(ctx), test.ShouldEqual, ErrClosed)
	test.That(t, track.Dropped(), test.ShouldBeTrue)
	test.That(t, td.BusHeld(), test.ShouldBeFalse)
	test.That(t, td.SetVolume(ctx, 1), test.ShouldEqual, ErrClosed)
	test.That(t, td.Close(ctx), test.ShouldBeNil)
}
