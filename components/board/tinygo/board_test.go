package tinygo

import (
	"context"
	"testing"

	"go.viam.com/test"
)

type loopback struct {
	txs [][]byte
}

func (l *loopback) Tx(w, r []byte) error {
	l.txs = append(l.txs, append([]byte(nil), w...))
	copy(r, w)
	return nil
}

func (l *loopback) Transfer(b byte) (byte, error) {
	return b, nil
}

func TestTinyGoBoard(t *testing.T) {
	ctx := context.Background()
	lb := &loopback{}
	spi := NewSPI(lb)
	var speeds []uint
	spi.Reconfigure = func(baud, mode uint) error {
		speeds = append(speeds, baud)
		return nil
	}

	level := false
	b := &Board{
		SPIs: map[string]*SPI{"main": spi},
		Pins: map[string]*Pin{
			"xcs":  {SetFunc: func(high bool) { level = high }, GetFunc: func() bool { return level }},
			"dreq": {GetFunc: func() bool { return true }},
		},
	}

	bus, ok := b.SPIByName("main")
	test.That(t, ok, test.ShouldBeTrue)
	h, err := bus.OpenHandle()
	test.That(t, err, test.ShouldBeNil)
	rx, err := h.Xfer(ctx, 1000000, "", 0, []byte{3, 1, 0xFF, 0xFF})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rx, test.ShouldResemble, []byte{3, 1, 0xFF, 0xFF})
	_, err = h.Xfer(ctx, 1000000, "", 0, []byte{2})
	test.That(t, err, test.ShouldBeNil)
	_, err = h.Xfer(ctx, 4000000, "", 0, []byte{2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speeds, test.ShouldResemble, []uint{1000000, 4000000})
	test.That(t, lb.txs, test.ShouldHaveLength, 3)
	test.That(t, h.Close(), test.ShouldBeNil)
	test.That(t, h.Close(), test.ShouldNotBeNil)

	xcs, err := b.GPIOPinByName("xcs")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, xcs.Set(ctx, true, nil), test.ShouldBeNil)
	high, err := xcs.Get(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)

	dreq, err := b.GPIOPinByName("dreq")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dreq.Set(ctx, true, nil), test.ShouldNotBeNil)

	_, err = b.GPIOPinByName("nope")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, b.Close(ctx), test.ShouldBeNil)
}
