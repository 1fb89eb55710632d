//go:build linux

package genericlinux

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"go.viam.com/vs10xx/components/board"
)

// edgeSlice bounds each periph.io edge wait so a cancelled context is noticed.
const edgeSlice = 100 * time.Millisecond

type periphGpioPin struct {
	pin   gpio.PinIO
	input bool
}

var _ board.EdgeWaiter = periphGpioPin{}

func openPeriphPin(conf board.PinConfig) (closablePin, error) {
	pin := gpioreg.ByName(conf.Pin)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", conf.Pin)
	}
	if conf.Input {
		if err := pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
			return nil, err
		}
	}
	return periphGpioPin{pin: pin, input: conf.Input}, nil
}

func (gp periphGpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	if gp.input {
		return errors.New("cannot set value of an input pin")
	}
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp periphGpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}

func (gp periphGpioPin) WaitForRisingEdge(ctx context.Context, timeout time.Duration) (bool, error) {
	if !gp.input {
		return false, errors.New("edges are only reported on input pins")
	}
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		wait := edgeSlice
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return false, nil
			}
			if left < wait {
				wait = left
			}
		}
		if gp.pin.WaitForEdge(wait) {
			return true, nil
		}
	}
}

func (gp periphGpioPin) Close() error {
	if gp.input {
		return gp.pin.In(gpio.PullNoChange, gpio.NoEdge)
	}
	return nil
}
