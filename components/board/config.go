package board

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// SPIConfig enumerates a specific, shareable SPI bus.
type SPIConfig struct {
	Name      string `json:"name"`
	BusSelect string `json:"bus_select"` // spidev bus number, e.g. "0" for /dev/spidev0.x
}

// Validate ensures all parts of the config are valid.
func (config *SPIConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.BusSelect == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bus_select")
	}
	return nil
}

// PinConfig names a GPIO line. A pin is either looked up by its global name (Pin) or opened
// from a GPIO character device (Chip + Line).
type PinConfig struct {
	Name  string `json:"name"`
	Pin   string `json:"pin,omitempty"`
	Chip  string `json:"chip,omitempty"` // e.g. "/dev/gpiochip0"
	Line  *int   `json:"line,omitempty"`
	Input bool   `json:"input,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *PinConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Pin == "" && config.Chip == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	if config.Pin != "" && config.Chip != "" {
		return utils.NewConfigValidationError(path, errors.New("only one of pin or chip may be set"))
	}
	if config.Chip != "" {
		if config.Line == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "line")
		}
		if *config.Line < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("line must be non-negative, got %d", *config.Line))
		}
	}
	return nil
}
