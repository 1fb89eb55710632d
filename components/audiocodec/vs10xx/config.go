package vs10xx

import (
	"math"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Defaults applied to a Config.
const (
	DefaultInitialClockHz = 1000000
	DefaultFastClockHz    = 4000000
	DefaultDREQTimeoutMs  = 1000
	DefaultPluginDir      = "plugins"
	DefaultFlushThreshold = 10000
	DefaultFillBufferSize = 25000
)

// Settings are the codec settings that may change while it runs.
type Settings struct {
	Volume *float64 `json:"volume,omitempty"`
	Input  string   `json:"input,omitempty"`
	Output string   `json:"output,omitempty"`
}

// Validate ensures all parts of the settings are valid.
func (s *Settings) Validate(path string) error {
	if s.Volume != nil && (math.IsNaN(*s.Volume) || *s.Volume < 0 || *s.Volume > 1) {
		return goutils.NewConfigValidationError(path, errors.Errorf("volume must be within [0, 1], got %v", *s.Volume))
	}
	if s.Input != "" {
		if _, err := ParseInput(s.Input); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	if s.Output != "" {
		if _, err := ParseOutput(s.Output); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Config describes how a VS10xx is wired to the board and how it starts up.
type Config struct {
	SPIBus        string `json:"spi_bus"`
	SPIChipSelect string `json:"spi_chip_select,omitempty"`
	XCSPin        string `json:"xcs_pin"`
	XDCSPin       string `json:"xdcs_pin"`
	DREQPin       string `json:"dreq_pin"`

	InitialClockHz uint `json:"initial_clock_hz,omitempty"`
	FastClockHz    uint `json:"fast_clock_hz,omitempty"`
	// DREQTimeoutMs bounds every wait on DREQ. Unset means DefaultDREQTimeoutMs; 0 waits forever.
	DREQTimeoutMs  *int   `json:"dreq_timeout_ms,omitempty"`
	PluginDir      string `json:"plugin_dir,omitempty"`
	FlushThreshold int    `json:"flush_threshold,omitempty"`
	FillBufferSize int    `json:"fill_buffer_size,omitempty"`

	Settings
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.SPIBus == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "spi_bus")
	}
	if conf.XCSPin == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "xcs_pin")
	}
	if conf.XDCSPin == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "xdcs_pin")
	}
	if conf.DREQPin == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "dreq_pin")
	}
	if conf.DREQTimeoutMs != nil && *conf.DREQTimeoutMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("dreq_timeout_ms cannot be negative"))
	}
	if conf.FlushThreshold < 0 {
		return goutils.NewConfigValidationError(path, errors.New("flush_threshold cannot be negative"))
	}
	if conf.FillBufferSize < 0 || conf.FillBufferSize == 1 {
		return goutils.NewConfigValidationError(path, errors.New("fill_buffer_size must hold at least one word"))
	}
	return conf.Settings.Validate(path)
}

// withDefaults returns a copy of conf with every unset field defaulted.
func (conf Config) withDefaults() Config {
	if conf.InitialClockHz == 0 {
		conf.InitialClockHz = DefaultInitialClockHz
	}
	if conf.FastClockHz == 0 {
		conf.FastClockHz = DefaultFastClockHz
	}
	if conf.DREQTimeoutMs == nil {
		ms := DefaultDREQTimeoutMs
		conf.DREQTimeoutMs = &ms
	}
	if conf.PluginDir == "" {
		conf.PluginDir = DefaultPluginDir
	}
	if conf.FlushThreshold == 0 {
		conf.FlushThreshold = DefaultFlushThreshold
	}
	if conf.FillBufferSize == 0 {
		conf.FillBufferSize = DefaultFillBufferSize
	}
	return conf
}

func (conf *Config) dreqTimeout() time.Duration {
	if conf.DREQTimeoutMs == nil {
		return DefaultDREQTimeoutMs * time.Millisecond
	}
	return time.Duration(*conf.DREQTimeoutMs) * time.Millisecond
}
