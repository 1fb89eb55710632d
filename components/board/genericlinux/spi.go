//go:build linux

package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"go.viam.com/vs10xx/components/board"
)

type spiBus struct {
	mu  sync.Mutex
	bus string
}

// spiHandle keeps the port it opened until it is closed. A port can only be connected once, so
// changing the clock speed or mode reopens it.
type spiHandle struct {
	bus      *spiBus
	isClosed bool

	port       spi.PortCloser
	conn       spi.Conn
	portName   string
	baud, mode uint
}

func (sb *spiBus) OpenHandle() (board.SPIHandle, error) {
	sb.mu.Lock()
	return &spiHandle{bus: sb}, nil
}

func (sh *spiHandle) Xfer(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) ([]byte, error) {
	if sh.isClosed {
		return nil, errors.New("can't use Xfer() on an already closed SPIHandle")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := spiPortName(sh.bus.bus, chipSelect)
	if sh.conn == nil || sh.portName != name || sh.baud != baud || sh.mode != mode {
		if err := sh.closePort(); err != nil {
			return nil, err
		}
		port, err := spireg.Open(name)
		if err != nil {
			return nil, err
		}
		conn, err := port.Connect(physic.Hertz*physic.Frequency(baud), spi.Mode(mode), 8)
		if err != nil {
			return nil, multierr.Combine(err, port.Close())
		}
		sh.port, sh.conn = port, conn
		sh.portName, sh.baud, sh.mode = name, baud, mode
	}
	rx := make([]byte, len(tx))
	return rx, sh.conn.Tx(tx, rx)
}

func (sh *spiHandle) closePort() error {
	if sh.port == nil {
		return nil
	}
	err := sh.port.Close()
	sh.port, sh.conn = nil, nil
	return err
}

func (sh *spiHandle) Close() error {
	if sh.isClosed {
		return errors.New("SPIHandle already closed")
	}
	sh.isClosed = true
	err := sh.closePort()
	sh.bus.mu.Unlock()
	return err
}
