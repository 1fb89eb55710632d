//go:build linux

package genericlinux

import (
	"context"
	"sync"
	"time"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
)

// chardevPin is an output line on a GPIO character device, using the ioctl interface by way of
// mkch's gpio package.
type chardevPin struct {
	mu   sync.Mutex
	line *gpio.Line
}

// chardevInputPin is an input line that also reports edges, so DREQ can be waited on instead of
// polled.
type chardevInputPin struct {
	line   *gpio.LineWithEvent
	logger logging.Logger
}

var _ board.EdgeWaiter = (*chardevInputPin)(nil)

func openChardevPin(conf board.PinConfig, logger logging.Logger) (closablePin, error) {
	chip, err := gpio.OpenChip(conf.Chip)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	if conf.Input {
		line, err := chip.OpenLineWithEvents(uint32(*conf.Line), gpio.Input, gpio.BothEdges, "vs10xx")
		if err != nil {
			return nil, err
		}
		return &chardevInputPin{line: line, logger: logger}, nil
	}
	// The 0 just means the line starts low. Select lines are driven high before first use.
	line, err := chip.OpenLine(uint32(*conf.Line), 0, gpio.Output, "vs10xx")
	if err != nil {
		return nil, err
	}
	return &chardevPin{line: line}, nil
}

func (pin *chardevPin) Set(ctx context.Context, isHigh bool, extra map[string]interface{}) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return errors.New("pin is closed")
	}
	var value byte
	if isHigh {
		value = 1
	}
	return pin.line.SetValue(value)
}

func (pin *chardevPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return false, errors.New("pin is closed")
	}
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	// We'd expect value to be either 0 or 1, but any non-zero value should be considered high.
	return value != 0, nil
}

func (pin *chardevPin) Close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return nil
	}
	err := pin.line.Close()
	pin.line = nil
	return err
}

func (pin *chardevInputPin) Set(ctx context.Context, isHigh bool, extra map[string]interface{}) error {
	return errors.New("cannot set value of an input pin")
}

func (pin *chardevInputPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// WaitForRisingEdge waits on the line's event channel. The channel only keeps the latest event,
// so a stale rising edge may be returned; callers check the level again afterwards.
func (pin *chardevInputPin) WaitForRisingEdge(ctx context.Context, timeout time.Duration) (bool, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-expired:
			return false, nil
		case event, ok := <-pin.line.Events():
			if !ok {
				return false, errors.New("pin is closed")
			}
			if event != nil && event.RisingEdge {
				return true, nil
			}
			pin.logger.Debugw("ignoring falling edge", "time", event)
		}
	}
}

func (pin *chardevInputPin) Close() error {
	return pin.line.Close()
}
