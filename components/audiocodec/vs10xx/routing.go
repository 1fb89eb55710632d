package vs10xx

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

// Input selects what the chip records from.
type Input string

// Inputs.
const (
	InputMicrophone Input = "microphone"
	InputLineIn     Input = "line-in"
)

// Output selects where the chip plays to.
type Output string

// Outputs.
const (
	OutputHeadphones Output = "headphones"
	OutputLineOut    Output = "line-out"
)

var (
	inputs     = []Input{InputMicrophone, InputLineIn}
	outputs    = []Output{OutputHeadphones, OutputLineOut}
	inputNames = map[string]Input{
		"microphone": InputMicrophone,
		"mic":        InputMicrophone,
		"line-in":    InputLineIn,
		"lineIn":     InputLineIn,
	}
	outputNames = map[string]Output{
		"headphones": OutputHeadphones,
		"line-out":   OutputLineOut,
		"lineOut":    OutputLineOut,
	}
)

// ParseInput accepts an input name or one of its aliases.
func ParseInput(name string) (Input, error) {
	in, ok := inputNames[name]
	if !ok {
		return "", errors.Wrapf(ErrInvalidArgument, "unknown input %q, expected one of %v", name, inputs)
	}
	return in, nil
}

// ParseOutput accepts an output name or one of its aliases.
func ParseOutput(name string) (Output, error) {
	out, ok := outputNames[name]
	if !ok {
		return "", errors.Wrapf(ErrInvalidArgument, "unknown output %q, expected one of %v", name, outputs)
	}
	return out, nil
}

// SetInput routes the chip's input. An unknown input fails before touching the chip.
func (d *Device) SetInput(ctx context.Context, in Input) error {
	in, err := ParseInput(string(in))
	if err != nil {
		return err
	}
	return d.do(ctx, func(ctx context.Context) error {
		return d.routeInput(ctx, in)
	})
}

// SetOutput routes the chip's output. An unknown output fails before touching the chip.
func (d *Device) SetOutput(ctx context.Context, out Output) error {
	out, err := ParseOutput(string(out))
	if err != nil {
		return err
	}
	return d.do(ctx, func(ctx context.Context) error {
		return d.routeOutput(ctx, out)
	})
}

// Input returns the current input.
func (d *Device) Input() Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// Output returns the current output.
func (d *Device) Output() Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.output
}

func (d *Device) routeInput(ctx context.Context, in Input) error {
	if err := d.setGPIOBit(ctx, sci.InputSelectBit, in == InputLineIn); err != nil {
		return err
	}
	d.mu.Lock()
	d.input = in
	d.mu.Unlock()
	return nil
}

func (d *Device) routeOutput(ctx context.Context, out Output) error {
	if err := d.setGPIOBit(ctx, sci.OutputSelectBit, out == OutputLineOut); err != nil {
		return err
	}
	d.mu.Lock()
	d.output = out
	d.mu.Unlock()
	return nil
}

func (d *Device) setGPIOBit(ctx context.Context, bit uint, on bool) error {
	current, err := d.conn.ReadWRAM(ctx, sci.GPIORead)
	if err != nil {
		return err
	}
	next := current &^ (1 << bit)
	if on {
		next |= 1 << bit
	}
	return d.conn.WriteWRAM(ctx, sci.GPIOSet, next)
}

// Apply changes whichever settings are set.
func (d *Device) Apply(ctx context.Context, s Settings) error {
	if err := s.Validate("settings"); err != nil {
		return err
	}
	return d.do(ctx, func(ctx context.Context) error {
		return d.applySettings(ctx, s)
	})
}

func (d *Device) applySettings(ctx context.Context, s Settings) error {
	var err error
	if s.Volume != nil {
		level := NormalizeVolume(*s.Volume)
		err = multierr.Append(err, d.writeVolume(ctx, level, level))
	}
	if s.Input != "" {
		in, parseErr := ParseInput(s.Input)
		if parseErr == nil {
			parseErr = d.routeInput(ctx, in)
		}
		err = multierr.Append(err, parseErr)
	}
	if s.Output != "" {
		out, parseErr := ParseOutput(s.Output)
		if parseErr == nil {
			parseErr = d.routeOutput(ctx, out)
		}
		err = multierr.Append(err, parseErr)
	}
	return err
}
