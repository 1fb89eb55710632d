package sci

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/board"
)

// A Bus shares one board SPI bus between register transactions and the streaming engine.
//
// Acquire holds an SPI handle, and with it the board's bus lock, until Release. While a
// handle is held every transaction runs on it. Otherwise each transaction opens and closes
// its own handle. Transactions never interleave either way.
type Bus struct {
	spi board.SPI

	mu   sync.Mutex
	held board.SPIHandle

	xferMu sync.Mutex
}

// NewBus wraps a board SPI bus.
func NewBus(spi board.SPI) *Bus {
	return &Bus{spi: spi}
}

// Acquire takes the bus lock if it is not already held.
func (b *Bus) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.held != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	// A transaction in flight owns a handle of its own; wait it out so OpenHandle cannot block
	// behind ourselves.
	b.xferMu.Lock()
	defer b.xferMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held != nil {
		return nil
	}
	h, err := b.spi.OpenHandle()
	if err != nil {
		return transferError("acquire", err)
	}
	b.held = h
	return nil
}

// Release gives the bus lock back. Releasing a bus that is not held does nothing.
func (b *Bus) Release() error {
	b.xferMu.Lock()
	defer b.xferMu.Unlock()
	b.mu.Lock()
	h := b.held
	b.held = nil
	b.mu.Unlock()
	if h == nil {
		return nil
	}
	return transferError("release", h.Close())
}

// Held reports whether the bus lock is held.
func (b *Bus) Held() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held != nil
}

// Do runs fn as one transaction.
func (b *Bus) Do(ctx context.Context, fn func(h board.SPIHandle) error) (err error) {
	b.xferMu.Lock()
	defer b.xferMu.Unlock()

	b.mu.Lock()
	h := b.held
	b.mu.Unlock()
	if h != nil {
		return fn(h)
	}

	h, err = b.spi.OpenHandle()
	if err != nil {
		return transferError("open", err)
	}
	defer func() {
		err = multierr.Combine(err, transferError("close", h.Close()))
	}()
	return fn(h)
}
