// Package tinygo adapts TinyGo peripherals to the board interfaces, so the codec driver runs on a
// microcontroller. A machine.SPI satisfies drivers.SPI, and a machine.Pin is wrapped with its Set
// and Get methods.
package tinygo

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"

	"go.viam.com/vs10xx/components/board"
)

var _ board.Board = (*Board)(nil)

// Board hands out the buses and pins it was built with.
type Board struct {
	SPIs map[string]*SPI
	Pins map[string]*Pin
}

// SPIByName returns the named bus.
func (b *Board) SPIByName(name string) (board.SPI, bool) {
	s, ok := b.SPIs[name]
	return s, ok
}

// GPIOPinByName returns the named pin.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	p, ok := b.Pins[name]
	if !ok {
		return nil, errors.Errorf("Cannot find GPIO for unknown pin: %s", name)
	}
	return p, nil
}

// Close does nothing; peripherals stay configured.
func (b *Board) Close(ctx context.Context) error {
	return nil
}

// SPI is a shared bus over a TinyGo SPI peripheral.
type SPI struct {
	mu  sync.Mutex
	bus drivers.SPI

	// Reconfigure, when set, is called whenever a transfer asks for a different clock speed or
	// mode than the previous one, e.g. to call machine.SPI.Configure.
	Reconfigure func(baud, mode uint) error

	baud, mode uint
	configured bool
}

// NewSPI wraps bus.
func NewSPI(bus drivers.SPI) *SPI {
	return &SPI{bus: bus}
}

// OpenHandle locks the bus.
func (s *SPI) OpenHandle() (board.SPIHandle, error) {
	s.mu.Lock()
	return &spiHandle{bus: s}, nil
}

type spiHandle struct {
	bus    *SPI
	closed bool
}

// Xfer ignores chipSelect; select lines are plain pins on these boards.
func (h *spiHandle) Xfer(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) ([]byte, error) {
	if h.closed {
		return nil, errors.New("can't use Xfer() on an already closed SPIHandle")
	}
	s := h.bus
	if s.Reconfigure != nil && (!s.configured || s.baud != baud || s.mode != mode) {
		if err := s.Reconfigure(baud, mode); err != nil {
			return nil, err
		}
		s.baud, s.mode, s.configured = baud, mode, true
	}
	rx := make([]byte, len(tx))
	return rx, s.bus.Tx(tx, rx)
}

func (h *spiHandle) Close() error {
	if h.closed {
		return errors.New("SPIHandle already closed")
	}
	h.closed = true
	h.bus.mu.Unlock()
	return nil
}

// Pin is a GPIO line driven through plain functions, such as a machine.Pin's Set and Get.
type Pin struct {
	SetFunc func(high bool)
	GetFunc func() bool
}

// Set sets the pin to either low or high.
func (p *Pin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	if p.SetFunc == nil {
		return errors.New("cannot set value of an input pin")
	}
	p.SetFunc(high)
	return nil
}

// Get gets the high/low state of the pin.
func (p *Pin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	if p.GetFunc == nil {
		return false, errors.New("cannot read an output-only pin")
	}
	return p.GetFunc(), nil
}
