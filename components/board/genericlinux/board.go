//go:build linux

// Package genericlinux implements a board on Linux: spidev buses through periph.io, and GPIO
// lines either by global name through periph.io or from a GPIO character device through mkch's
// gpio package.
package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/host/v3"

	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
)

var _ board.Board = (*Board)(nil)

// Board is a Linux board.
type Board struct {
	mu     sync.Mutex
	spis   map[string]*spiBus
	pins   map[string]closablePin
	logger logging.Logger
}

type closablePin interface {
	board.GPIOPin
	Close() error
}

// NewBoard initializes the host drivers and opens every configured pin.
func NewBoard(ctx context.Context, conf Config, logger logging.Logger) (*Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot initialize host drivers")
	}

	b := &Board{
		spis:   make(map[string]*spiBus, len(conf.SPIs)),
		pins:   make(map[string]closablePin, len(conf.Pins)),
		logger: logger,
	}
	for _, spiConf := range conf.SPIs {
		b.spis[spiConf.Name] = &spiBus{bus: spiConf.BusSelect}
	}
	for _, pinConf := range conf.Pins {
		var pin closablePin
		var err error
		if pinConf.Chip != "" {
			pin, err = openChardevPin(pinConf, logger)
		} else {
			pin, err = openPeriphPin(pinConf)
		}
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "cannot open pin %q", pinConf.Name), b.Close(ctx))
		}
		b.pins[pinConf.Name] = pin
	}
	return b, nil
}

// SPIByName returns the named SPI bus.
func (b *Board) SPIByName(name string) (board.SPI, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.spis[name]
	return s, ok
}

// GPIOPinByName returns the named pin.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pin, ok := b.pins[name]
	if !ok {
		return nil, errors.Errorf("Cannot find GPIO for unknown pin: %s", name)
	}
	return pin, nil
}

// Close closes every pin so we don't leak file descriptors.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for name, pin := range b.pins {
		err = multierr.Combine(err, errors.Wrapf(pin.Close(), "closing pin %q", name))
	}
	b.pins = map[string]closablePin{}
	return err
}
