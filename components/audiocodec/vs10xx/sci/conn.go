// Package sci speaks the VS10xx serial control interface: 16-bit register transactions over
// SPI framed by XCS, SDI data framed by XDCS, both gated on the chip's DREQ line.
package sci

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
)

const (
	// SDIChunkSize is how many data bytes the chip always accepts once DREQ is high.
	SDIChunkSize = 32

	dreqPollInterval = time.Millisecond
	edgeRecheck      = 10 * time.Millisecond
)

// Pins are the control lines of a VS10xx. XCS and XDCS are active low.
type Pins struct {
	XCS  board.GPIOPin
	XDCS board.GPIOPin
	DREQ board.GPIOPin
}

// Options tune a Conn.
type Options struct {
	// ClockHz is the initial SPI clock.
	ClockHz uint
	// Mode is the SPI mode.
	Mode uint
	// ChipSelect is passed to every transfer. XCS and XDCS frame transactions either way.
	ChipSelect string
	// DREQTimeout bounds every wait on DREQ. Zero waits forever.
	DREQTimeout time.Duration
	// Clock measures DREQTimeout. Nil means the wall clock.
	Clock clock.Clock
}

// A Conn performs SCI and SDI transactions with one chip.
type Conn struct {
	bus         *Bus
	pins        Pins
	baud        atomic.Uint32
	mode        uint
	chipSelect  string
	dreqTimeout time.Duration
	clk         clock.Clock
	logger      logging.Logger
}

// NewConn returns a Conn talking to the chip on bus through pins.
func NewConn(bus *Bus, pins Pins, opts Options, logger logging.Logger) (*Conn, error) {
	if bus == nil {
		return nil, errors.New("sci connection needs a bus")
	}
	if pins.XCS == nil || pins.XDCS == nil || pins.DREQ == nil {
		return nil, errors.New("sci connection needs XCS, XDCS and DREQ pins")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	c := &Conn{
		bus:         bus,
		pins:        pins,
		mode:        opts.Mode,
		chipSelect:  opts.ChipSelect,
		dreqTimeout: opts.DREQTimeout,
		clk:         clk,
		logger:      logger,
	}
	c.baud.Store(uint32(opts.ClockHz))
	return c, nil
}

// Bus returns the bus the connection transacts on.
func (c *Conn) Bus() *Bus {
	return c.bus
}

// SetClockSpeed sets the SPI clock used by subsequent transfers.
func (c *Conn) SetClockSpeed(hz uint) {
	c.baud.Store(uint32(hz))
}

// ClockSpeed returns the current SPI clock.
func (c *Conn) ClockSpeed() uint {
	return uint(c.baud.Load())
}

// TransferByte exchanges a single byte with the chip.
func (c *Conn) TransferByte(ctx context.Context, b byte) (byte, error) {
	var rx byte
	err := c.bus.Do(ctx, func(h board.SPIHandle) error {
		var err error
		rx, err = c.xferByte(ctx, h, b)
		return err
	})
	return rx, err
}

// WaitDREQ blocks until the chip raises DREQ.
func (c *Conn) WaitDREQ(ctx context.Context) error {
	return c.waitDREQ(ctx)
}

// ReadRegister16 reads an SCI register.
func (c *Conn) ReadRegister16(ctx context.Context, addr byte) (uint16, error) {
	var word uint16
	err := c.bus.Do(ctx, func(h board.SPIHandle) error {
		var err error
		word, err = c.readRegister(ctx, h, addr)
		return err
	})
	return word, err
}

// WriteRegister writes hi and lo into an SCI register.
func (c *Conn) WriteRegister(ctx context.Context, addr, hi, lo byte) error {
	return c.bus.Do(ctx, func(h board.SPIHandle) error {
		return c.writeRegister(ctx, h, addr, hi, lo)
	})
}

// WriteRegister16 writes a word into an SCI register.
func (c *Conn) WriteRegister16(ctx context.Context, addr byte, word uint16) error {
	return c.WriteRegister(ctx, addr, byte(word>>8), byte(word))
}

// ReadWRAM reads a word of chip memory.
func (c *Conn) ReadWRAM(ctx context.Context, addr uint16) (uint16, error) {
	var word uint16
	err := c.bus.Do(ctx, func(h board.SPIHandle) error {
		if err := c.writeRegister(ctx, h, WRAMAddr, byte(addr>>8), byte(addr)); err != nil {
			return err
		}
		var err error
		word, err = c.readRegister(ctx, h, WRAM)
		return err
	})
	return word, err
}

// WriteWRAM writes a word of chip memory.
func (c *Conn) WriteWRAM(ctx context.Context, addr, word uint16) error {
	return c.WriteWRAMBlock(ctx, addr, []uint16{word})
}

// WriteWRAMBlock writes consecutive words of chip memory starting at addr.
func (c *Conn) WriteWRAMBlock(ctx context.Context, addr uint16, words []uint16) error {
	return c.bus.Do(ctx, func(h board.SPIHandle) error {
		if err := c.writeRegister(ctx, h, WRAMAddr, byte(addr>>8), byte(addr)); err != nil {
			return err
		}
		for _, w := range words {
			if err := c.writeRegister(ctx, h, WRAM, byte(w>>8), byte(w)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftReset resets the chip through MODE and leaves it in mode.
func (c *Conn) SoftReset(ctx context.Context, mode uint16) error {
	return c.bus.Do(ctx, func(h board.SPIHandle) error {
		current, err := c.readRegister(ctx, h, Mode)
		if err != nil {
			return err
		}
		if err := c.writeRegister(ctx, h, Mode, byte((current|SMReset)>>8), byte(current|SMReset)); err != nil {
			return err
		}
		if err := c.waitDREQ(ctx); err != nil {
			return err
		}
		return c.writeRegister(ctx, h, Mode, byte(mode>>8), byte(mode))
	})
}

// WriteData sends audio data through SDI, SDIChunkSize bytes per DREQ. Register transactions
// may run between chunks.
func (c *Conn) WriteData(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > SDIChunkSize {
			n = SDIChunkSize
		}
		chunk := p[:n]
		if err := c.bus.Do(ctx, func(h board.SPIHandle) error {
			return c.sdiChunk(ctx, h, chunk)
		}); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (c *Conn) sdiChunk(ctx context.Context, h board.SPIHandle, chunk []byte) (err error) {
	if err := c.waitDREQ(ctx); err != nil {
		return err
	}
	if err := c.pins.XDCS.Set(ctx, false, nil); err != nil {
		return transferError("select data", err)
	}
	defer func() {
		err = multierr.Combine(err, transferError("deselect data", c.pins.XDCS.Set(context.WithoutCancel(ctx), true, nil)))
	}()
	_, err = h.Xfer(ctx, c.ClockSpeed(), c.chipSelect, c.mode, chunk)
	return transferError("sdi write", err)
}

func (c *Conn) readRegister(ctx context.Context, h board.SPIHandle, addr byte) (word uint16, err error) {
	if err := c.waitDREQ(ctx); err != nil {
		return 0, err
	}
	if err := c.selectControl(ctx); err != nil {
		return 0, err
	}
	defer func() {
		err = multierr.Combine(err, c.deselectControl(ctx))
	}()

	rx, err := h.Xfer(ctx, c.ClockSpeed(), c.chipSelect, c.mode, []byte{opRead, addr, 0xFF})
	if err != nil {
		return 0, transferError("read register", err)
	}
	if len(rx) != 3 {
		return 0, transferError("read register", errors.Errorf("expected 3 bytes back, got %d", len(rx)))
	}
	hi := rx[2]
	if err := c.waitDREQ(ctx); err != nil {
		return 0, err
	}
	lo, err := c.xferByte(ctx, h, 0xFF)
	if err != nil {
		return 0, err
	}
	if err := c.waitDREQ(ctx); err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (c *Conn) writeRegister(ctx context.Context, h board.SPIHandle, addr, hi, lo byte) (err error) {
	if err := c.waitDREQ(ctx); err != nil {
		return err
	}
	if err := c.selectControl(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, c.deselectControl(ctx))
	}()

	if _, err := h.Xfer(ctx, c.ClockSpeed(), c.chipSelect, c.mode, []byte{opWrite, addr, hi, lo}); err != nil {
		return transferError("write register", err)
	}
	return c.waitDREQ(ctx)
}

func (c *Conn) xferByte(ctx context.Context, h board.SPIHandle, b byte) (byte, error) {
	rx, err := h.Xfer(ctx, c.ClockSpeed(), c.chipSelect, c.mode, []byte{b})
	if err != nil {
		return 0, transferError("transfer byte", err)
	}
	if len(rx) != 1 {
		return 0, transferError("transfer byte", errors.Errorf("expected 1 byte back, got %d", len(rx)))
	}
	return rx[0], nil
}

func (c *Conn) selectControl(ctx context.Context) error {
	return transferError("select control", c.pins.XCS.Set(ctx, false, nil))
}

// deselectControl runs on every exit path, so it ignores a cancelled ctx.
func (c *Conn) deselectControl(ctx context.Context) error {
	return transferError("deselect control", c.pins.XCS.Set(context.WithoutCancel(ctx), true, nil))
}

func (c *Conn) waitDREQ(ctx context.Context) error {
	var deadline time.Time
	if c.dreqTimeout > 0 {
		deadline = c.clk.Now().Add(c.dreqTimeout)
	}
	edges, canWait := c.pins.DREQ.(board.EdgeWaiter)
	for {
		high, err := c.pins.DREQ.Get(ctx, nil)
		if err != nil {
			return transferError("read DREQ", err)
		}
		if high {
			return nil
		}
		if !deadline.IsZero() && !c.clk.Now().Before(deadline) {
			c.logger.Debugw("DREQ stayed low", "timeout", c.dreqTimeout)
			return transferError("wait for DREQ", ErrDREQTimeout)
		}
		if canWait {
			// DREQ may have risen between Get and here; recheck the level now and then.
			if _, err := edges.WaitForRisingEdge(ctx, edgeRecheck); err != nil {
				return transferError("wait for DREQ", err)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return transferError("wait for DREQ", ctx.Err())
		case <-c.clk.After(dreqPollInterval):
		}
	}
}
