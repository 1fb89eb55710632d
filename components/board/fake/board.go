// Package fake implements an in-memory board: SPI buses whose handles really lock, and GPIO pins
// that read back what was set. Devices attached to a bus decide what comes back on MISO.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
)

// Board is a fake board. Buses and pins are created on first use.
type Board struct {
	mu       sync.Mutex
	SPIs     map[string]*SPI
	GPIOPins map[string]*GPIOPin
	logger   logging.Logger

	CloseCount int
}

var _ board.Board = (*Board)(nil)

// NewBoard returns a new fake board.
func NewBoard(logger logging.Logger) *Board {
	return &Board{
		SPIs:     map[string]*SPI{},
		GPIOPins: map[string]*GPIOPin{},
		logger:   logger,
	}
}

// SPIByName returns the named bus, creating it if needed.
func (b *Board) SPIByName(name string) (board.SPI, bool) {
	return b.SPI(name), true
}

// SPI is SPIByName returning the concrete fake.
func (b *Board) SPI(name string) *SPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.SPIs[name]
	if !ok {
		s = &SPI{}
		b.SPIs[name] = s
	}
	return s
}

// GPIOPinByName returns the named pin, creating it (low) if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.GPIOPin(name), nil
}

// GPIOPin is GPIOPinByName returning the concrete fake.
func (b *Board) GPIOPin(name string) *GPIOPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p
}

// Close counts closes.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	return nil
}

// An SPIDevice sits on a fake bus and answers transfers.
type SPIDevice interface {
	Exchange(tx []byte) ([]byte, error)
}

// SPI is a fake bus. OpenHandle blocks while another handle is open, like a real shared bus.
type SPI struct {
	busMu sync.Mutex

	mu        sync.Mutex
	device    SPIDevice
	open      bool
	opens     int
	baud      uint
	failXfer  error
	transfers int
}

// Attach sets the device answering transfers. Without one, every byte reads back as 0xFF.
func (s *SPI) Attach(device SPIDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
}

// FailTransfers makes every following Xfer return err, or succeed again when err is nil.
func (s *SPI) FailTransfers(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failXfer = err
}

// IsOpen reports whether a handle currently holds the bus.
func (s *SPI) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opens is the number of handles opened so far.
func (s *SPI) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Baud is the clock speed of the last transfer.
func (s *SPI) Baud() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Transfers is the number of Xfer calls made so far.
func (s *SPI) Transfers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers
}

// OpenHandle locks the bus.
func (s *SPI) OpenHandle() (board.SPIHandle, error) {
	s.busMu.Lock()
	s.mu.Lock()
	s.open = true
	s.opens++
	s.mu.Unlock()
	return &spiHandle{bus: s}, nil
}

type spiHandle struct {
	bus    *SPI
	closed bool
}

func (h *spiHandle) Xfer(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) ([]byte, error) {
	if h.closed {
		return nil, errors.New("can't use Xfer() on an already closed SPIHandle")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.bus.mu.Lock()
	h.bus.baud = baud
	h.bus.transfers++
	device, failErr := h.bus.device, h.bus.failXfer
	h.bus.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}
	if device == nil {
		rx := make([]byte, len(tx))
		for i := range rx {
			rx[i] = 0xFF
		}
		return rx, nil
	}
	return device.Exchange(tx)
}

func (h *spiHandle) Close() error {
	if h.closed {
		return errors.New("SPIHandle already closed")
	}
	h.closed = true
	h.bus.mu.Lock()
	h.bus.open = false
	h.bus.mu.Unlock()
	h.bus.busMu.Unlock()
	return nil
}

// A GPIOPin reads back the same set values. OnSet, when present, observes every Set call after
// the level changed.
type GPIOPin struct {
	mu    sync.Mutex
	high  bool
	edges chan struct{}
	onSet func(high bool)
}

var _ board.EdgeWaiter = (*GPIOPin)(nil)

// OnSet registers a hook called on every Set.
func (gp *GPIOPin) OnSet(f func(high bool)) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.onSet = f
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	rising := high && !gp.high
	gp.high = high
	if rising && gp.edges != nil {
		close(gp.edges)
		gp.edges = nil
	}
	hook := gp.onSet
	gp.mu.Unlock()

	if hook != nil {
		hook(high)
	}
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// WaitForRisingEdge waits for the next low to high transition made through Set.
func (gp *GPIOPin) WaitForRisingEdge(ctx context.Context, timeout time.Duration) (bool, error) {
	gp.mu.Lock()
	if gp.edges == nil {
		gp.edges = make(chan struct{})
	}
	edges := gp.edges
	gp.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-edges:
		return true, nil
	case <-timer:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
