// Package sim simulates a VS10xx attached to a fake board: SCI registers, chip memory and
// GPIO, SDI data capture and a recording FIFO.
package sim

import (
	"context"
	"sync"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
	"go.viam.com/vs10xx/components/board/fake"
)

// An Access is one SCI register write seen by the chip.
type Access struct {
	Addr  byte
	Value uint16
}

// Chip is a simulated VS10xx. It answers the fake SPI bus and watches its select lines.
type Chip struct {
	mu sync.Mutex

	regs     [16]uint16
	wram     map[uint16]uint16
	wramAddr uint16
	gpioDir  uint16
	gpioOut  uint16
	version  int

	xcs, xdcs bool

	idx      int
	op, addr byte
	hi, lo   byte

	sdi    []byte
	writes []Access
	resets int

	recording     bool
	stopRequested bool
	fifo          []uint16
	produce       int
	sample        uint16
}

// Attach wires a new chip onto the named bus and pins of a fake board. DREQ is held high.
func Attach(b *fake.Board, bus, xcs, xdcs, dreq string) *Chip {
	c := &Chip{
		wram:    map[uint16]uint16{},
		version: sci.ExpectedVersion,
		produce: 8,
	}
	ctx := context.Background()
	b.SPI(bus).Attach(c)

	xcsPin := b.GPIOPin(xcs)
	xcsPin.Set(ctx, true, nil)
	xcsPin.OnSet(func(high bool) { c.selectControl(!high) })

	xdcsPin := b.GPIOPin(xdcs)
	xdcsPin.Set(ctx, true, nil)
	xdcsPin.OnSet(func(high bool) { c.selectData(!high) })

	b.GPIOPin(dreq).Set(ctx, true, nil)
	return c
}

// SetVersion sets the SS_VER the chip reports.
func (c *Chip) SetVersion(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = v
}

// SetRecordRate sets how many words appear in the recording FIFO per HDAT1 poll.
func (c *Chip) SetRecordRate(words int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.produce = words
}

// Register returns the raw value of an SCI register.
func (c *Chip) Register(addr byte) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[addr&0x0F]
}

// SetRegister overwrites an SCI register.
func (c *Chip) SetRegister(addr byte, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[addr&0x0F] = v
}

// GPIO returns the chip GPIO direction and output registers.
func (c *Chip) GPIO() (dir, out uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpioDir, c.gpioOut
}

// WRAM returns a word of chip memory.
func (c *Chip) WRAM(addr uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wram[addr]
}

// SDIData returns everything written through SDI so far.
func (c *Chip) SDIData() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.sdi))
	copy(out, c.sdi)
	return out
}

// Writes returns every SCI register write so far.
func (c *Chip) Writes() []Access {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Access, len(c.writes))
	copy(out, c.writes)
	return out
}

// Resets is the number of soft resets so far.
func (c *Chip) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Recording reports whether the encoder is running.
func (c *Chip) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

func (c *Chip) selectControl(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xcs = on
	c.idx = 0
}

func (c *Chip) selectData(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xdcs = on
}

// Exchange answers one SPI transfer.
func (c *Chip) Exchange(tx []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rx := make([]byte, len(tx))
	for i, b := range tx {
		switch {
		case c.xcs:
			rx[i] = c.sciByte(b)
		case c.xdcs:
			c.sdi = append(c.sdi, b)
		default:
			rx[i] = 0xFF
		}
	}
	return rx, nil
}

func (c *Chip) sciByte(b byte) byte {
	defer func() { c.idx++ }()
	switch c.idx {
	case 0:
		c.op = b
	case 1:
		c.addr = b & 0x0F
	case 2:
		if c.op == 0x03 {
			v := c.readReg(c.addr)
			c.lo = byte(v)
			return byte(v >> 8)
		}
		c.hi = b
	case 3:
		if c.op == 0x03 {
			return c.lo
		}
		if c.op == 0x02 {
			c.writeReg(c.addr, uint16(c.hi)<<8|uint16(b))
		}
	}
	return 0
}

func (c *Chip) readReg(addr byte) uint16 {
	switch addr {
	case sci.Status:
		return c.regs[sci.Status]&^0xF0 | uint16(c.version&0x0F)<<4
	case sci.WRAM:
		v := c.readWRAM(c.wramAddr)
		c.wramAddr++
		return v
	case sci.HDAT1:
		if c.recording && !c.stopRequested {
			for i := 0; i < c.produce; i++ {
				c.sample++
				c.fifo = append(c.fifo, c.sample)
			}
		}
		return uint16(len(c.fifo))
	case sci.HDAT0:
		if len(c.fifo) == 0 {
			return 0
		}
		v := c.fifo[0]
		c.fifo = c.fifo[1:]
		return v
	case sci.AICtrl3:
		v := c.regs[sci.AICtrl3]
		if c.recording && c.stopRequested && len(c.fifo) == 0 {
			v |= 1 << 1
		}
		return v
	default:
		return c.regs[addr]
	}
}

func (c *Chip) writeReg(addr byte, v uint16) {
	c.writes = append(c.writes, Access{Addr: addr, Value: v})
	switch addr {
	case sci.Mode:
		if v&sci.SMReset != 0 {
			c.resets++
			c.recording = false
			c.stopRequested = false
			c.fifo = nil
			for i := range c.regs {
				if byte(i) != sci.Vol {
					c.regs[i] = 0
				}
			}
		}
		c.regs[sci.Mode] = v &^ (sci.SMReset | sci.SMCancel)
	case sci.WRAMAddr:
		c.wramAddr = v
	case sci.WRAM:
		c.writeWRAM(c.wramAddr, v)
		c.wramAddr++
	case sci.AICtrl3:
		c.regs[sci.AICtrl3] = v
		if c.recording && v&1 != 0 {
			c.stopRequested = true
		}
	case sci.AIAddr:
		c.regs[sci.AIAddr] = v
		if c.regs[sci.Mode]&sci.SMADPCM != 0 {
			c.recording = true
			c.stopRequested = false
			c.fifo = nil
		}
	default:
		c.regs[addr] = v
	}
}

func (c *Chip) readWRAM(addr uint16) uint16 {
	switch addr {
	case sci.GPIODir:
		return c.gpioDir
	case sci.GPIORead:
		return c.gpioOut & c.gpioDir
	case sci.GPIOSet:
		return c.gpioOut
	default:
		return c.wram[addr]
	}
}

func (c *Chip) writeWRAM(addr, v uint16) {
	switch addr {
	case sci.GPIODir:
		c.gpioDir = v
	case sci.GPIOSet:
		c.gpioOut = v
	default:
		c.wram[addr] = v
	}
}
