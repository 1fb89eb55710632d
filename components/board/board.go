// Package board defines the bus and pin interfaces a peripheral driver needs from the host board.
package board

import (
	"context"
	"time"
)

// A Board hands out the named SPI buses and GPIO pins it was configured with.
type Board interface {
	// SPIByName returns an SPI bus by name.
	SPIByName(name string) (SPI, bool)

	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// Close releases every bus and pin.
	Close(ctx context.Context) error
}

// SPI represents a shareable SPI bus on the board.
type SPI interface {
	// OpenHandle locks the shared bus and returns a handle interface that MUST be closed when done.
	OpenHandle() (SPIHandle, error)
}

// SPIHandle is similar to an io handle. It MUST be closed to release the bus.
type SPIHandle interface {
	// Xfer performs a single SPI transfer. SPI transfers are synchronous, number of bytes received
	// will be equal to the number of bytes sent. chipSelect names the hardware chip select of
	// the bus to transfer on; empty means the bus default. Devices with GPIO-driven select lines
	// drive those themselves around the transfer.
	Xfer(
		ctx context.Context,
		baud uint,
		chipSelect string,
		mode uint,
		tx []byte,
	) ([]byte, error)

	// Close closes the handle and releases the lock on the bus.
	Close() error
}

// An EdgeWaiter is a pin that can block until it sees a rising edge instead of being polled.
type EdgeWaiter interface {
	// WaitForRisingEdge blocks until a rising edge, the timeout or ctx is done. It returns
	// whether an edge was seen. A zero timeout waits until ctx is done.
	WaitForRisingEdge(ctx context.Context, timeout time.Duration) (bool, error)
}
