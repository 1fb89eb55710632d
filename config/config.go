// Package config reads the JSON file describing the board and the codec, and watches it for
// setting changes.
package config

import (
	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx"
	"go.viam.com/vs10xx/components/board/genericlinux"
)

// A Config is everything needed to bring up one codec on a Linux board.
type Config struct {
	Board genericlinux.Config `json:"board"`
	Codec vs10xx.Config       `json:"codec"`
	Debug bool                `json:"debug,omitempty"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// Validate ensures all parts of the config are valid, including that the codec only names buses
// and pins the board has.
func (c *Config) Validate() error {
	if err := c.Board.Validate("board"); err != nil {
		return err
	}
	if err := c.Codec.Validate("codec"); err != nil {
		return err
	}
	if !hasSPI(c.Board, c.Codec.SPIBus) {
		return errors.Errorf("codec.spi_bus %q is not a board spi", c.Codec.SPIBus)
	}
	for field, name := range map[string]string{
		"xcs_pin":  c.Codec.XCSPin,
		"xdcs_pin": c.Codec.XDCSPin,
		"dreq_pin": c.Codec.DREQPin,
	} {
		if !hasPin(c.Board, name) {
			return errors.Errorf("codec.%s %q is not a board pin", field, name)
		}
	}
	return nil
}

func hasSPI(b genericlinux.Config, name string) bool {
	for _, s := range b.SPIs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func hasPin(b genericlinux.Config, name string) bool {
	for _, p := range b.Pins {
		if p.Name == name {
			return true
		}
	}
	return false
}
