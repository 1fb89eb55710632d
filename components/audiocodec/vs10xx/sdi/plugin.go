package sdi

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

var pluginMagic = []byte("P&H")

// Plugin record types.
const (
	recordI    = 0 // instruction memory, 32-bit words
	recordX    = 1
	recordY    = 2
	recordExec = 3
)

// Chip memory as seen through WRAMADDR.
const (
	offsetI = 0x8000
	offsetX = 0x0000
	offsetY = 0x4000
)

// DefaultExecAddr starts the encoder when a plugin carries no execute record.
const DefaultExecAddr = 0x34

// A PluginRecord is a block of words for one chip memory.
type PluginRecord struct {
	Type  byte
	Addr  uint16
	Words []uint16
}

// A Plugin is an encoder image: memory blocks to load and the address to start at.
type Plugin struct {
	Records  []PluginRecord
	ExecAddr uint16
}

// ReadPlugin reads a plugin image from disk.
func ReadPlugin(path string) (*Plugin, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read plugin")
	}
	p, err := ParsePlugin(data)
	if err != nil {
		return nil, errors.Wrapf(err, "bad plugin %q", path)
	}
	return p, nil
}

// ParsePlugin decodes a plugin image: "P&H" followed by records of
// type (1 byte), length in bytes (2 bytes), address (2 bytes) and big endian words.
func ParsePlugin(data []byte) (*Plugin, error) {
	if !bytes.HasPrefix(data, pluginMagic) {
		return nil, errors.New("missing P&H header")
	}
	p := &Plugin{ExecAddr: DefaultExecAddr}
	rest := data[len(pluginMagic):]
	for len(rest) > 0 {
		if len(rest) < 5 {
			return nil, errors.Errorf("truncated record header (%d bytes)", len(rest))
		}
		typ := rest[0]
		n := int(binary.BigEndian.Uint16(rest[1:3]))
		addr := binary.BigEndian.Uint16(rest[3:5])
		rest = rest[5:]

		if typ == recordExec {
			p.ExecAddr = addr
			continue
		}
		if typ > recordY {
			return nil, errors.Errorf("unknown record type %d", typ)
		}
		if n%2 != 0 || n > len(rest) {
			return nil, errors.Errorf("bad record length %d at address %#04x", n, addr)
		}
		words := make([]uint16, n/2)
		for i := range words {
			words[i] = binary.BigEndian.Uint16(rest[2*i:])
		}
		rest = rest[n:]
		p.Records = append(p.Records, PluginRecord{Type: typ, Addr: addr, Words: words})
	}
	return p, nil
}

// Load writes every record into chip memory. It does not start the plugin.
func (p *Plugin) Load(ctx context.Context, conn *sci.Conn) error {
	for _, r := range p.Records {
		addr := r.Addr
		switch r.Type {
		case recordI:
			addr += offsetI
		case recordX:
			addr += offsetX
		case recordY:
			addr += offsetY
		}
		if err := conn.WriteWRAMBlock(ctx, addr, r.Words); err != nil {
			return errors.Wrapf(err, "loading plugin record at %#04x", r.Addr)
		}
	}
	return nil
}
