package genericlinux

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/vs10xx/components/board"
)

// A Config describes the SPI buses and GPIO lines of a Linux board.
type Config struct {
	SPIs []board.SPIConfig `json:"spis,omitempty"`
	Pins []board.PinConfig `json:"pins,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for idx, c := range conf.SPIs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "spis", idx)); err != nil {
			return err
		}
	}
	for idx, c := range conf.Pins {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "pins", idx)); err != nil {
			return err
		}
	}
	names := append(
		lo.Map(conf.SPIs, func(c board.SPIConfig, _ int) string { return c.Name }),
		lo.Map(conf.Pins, func(c board.PinConfig, _ int) string { return c.Name })...,
	)
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("duplicate names %v", dups))
	}
	return nil
}

// spiPortName is the periph.io name of a spidev port. An empty chip select means the first one.
func spiPortName(bus, chipSelect string) string {
	if chipSelect == "" {
		chipSelect = "0"
	}
	return fmt.Sprintf("SPI%s.%s", bus, chipSelect)
}
