package vs10xx

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

func TestParseRouting(t *testing.T) {
	for name, want := range map[string]Input{
		"microphone": InputMicrophone,
		"mic":        InputMicrophone,
		"line-in":    InputLineIn,
		"lineIn":     InputLineIn,
	} {
		got, err := ParseInput(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	for name, want := range map[string]Output{
		"headphones": OutputHeadphones,
		"line-out":   OutputLineOut,
		"lineOut":    OutputLineOut,
	} {
		got, err := ParseOutput(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}

	_, err := ParseInput("headphones")
	test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected one of [microphone line-in]")
	_, err = ParseOutput("")
	test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected one of [headphones line-out]")
}

func readGPIO(t *testing.T, td *testDevice) uint16 {
	t.Helper()
	word, err := td.Conn().ReadWRAM(context.Background(), sci.GPIORead)
	test.That(t, err, test.ShouldBeNil)
	return word
}

func TestSetInput(t *testing.T) {
	ctx := context.Background()
	td := newTestDevice(t)

	test.That(t, td.SetInput(ctx, InputLineIn), test.ShouldBeNil)
	test.That(t, readGPIO(t, td)&(1<<5), test.ShouldNotEqual, 0)
	test.That(t, td.Input(), test.ShouldEqual, InputLineIn)

	test.That(t, td.SetInput(ctx, InputMicrophone), test.ShouldBeNil)
	test.That(t, readGPIO(t, td)&(1<<5), test.ShouldEqual, 0)
	test.That(t, td.Input(), test.ShouldEqual, InputMicrophone)

	test.That(t, td.SetInput(ctx, "lineIn"), test.ShouldBeNil)
	before := readGPIO(t, td)
	writes := len(td.chip.Writes())
	err := td.SetInput(ctx, "banjo")
	test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, readGPIO(t, td), test.ShouldEqual, before)
	test.That(t, td.Input(), test.ShouldEqual, InputLineIn)
	// reading GPIO back writes WRAMADDR, nothing else
	test.That(t, len(td.chip.Writes()), test.ShouldEqual, writes+1)
}

func TestSetOutput(t *testing.T) {
	ctx := context.Background()
	td := newTestDevice(t)

	test.That(t, td.SetOutput(ctx, OutputLineOut), test.ShouldBeNil)
	test.That(t, readGPIO(t, td)&(1<<7), test.ShouldNotEqual, 0)
	test.That(t, td.Output(), test.ShouldEqual, OutputLineOut)

	test.That(t, td.SetOutput(ctx, OutputHeadphones), test.ShouldBeNil)
	test.That(t, readGPIO(t, td)&(1<<7), test.ShouldEqual, 0)

	before := readGPIO(t, td)
	err := td.SetOutput(ctx, "microphone")
	test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, readGPIO(t, td), test.ShouldEqual, before)
	test.That(t, td.Output(), test.ShouldEqual, OutputHeadphones)
}

func TestRoutingBitsAreIndependent(t *testing.T) {
	ctx := context.Background()
	td := newTestDevice(t)

	test.That(t, td.SetInput(ctx, InputLineIn), test.ShouldBeNil)
	test.That(t, td.SetOutput(ctx, OutputLineOut), test.ShouldBeNil)
	test.That(t, readGPIO(t, td), test.ShouldEqual, 1<<7|1<<5)
	test.That(t, td.SetInput(ctx, InputMicrophone), test.ShouldBeNil)
	test.That(t, readGPIO(t, td), test.ShouldEqual, 1<<7)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	td := newTestDevice(t)

	quiet := 0.0
	test.That(t, td.Apply(ctx, Settings{Volume: &quiet, Output: "lineOut"}), test.ShouldBeNil)
	test.That(t, td.chip.Register(sci.Vol), test.ShouldEqual, 0xFEFE)
	test.That(t, td.Output(), test.ShouldEqual, OutputLineOut)
	test.That(t, td.Input(), test.ShouldEqual, InputMicrophone)

	loud := 2.0
	test.That(t, td.Apply(ctx, Settings{Volume: &loud}), test.ShouldNotBeNil)
	test.That(t, td.chip.Register(sci.Vol), test.ShouldEqual, 0xFEFE)
}
