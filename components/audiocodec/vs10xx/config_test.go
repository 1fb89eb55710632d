package vs10xx

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestConfigValidate(t *testing.T) {
	conf := testConfig()
	test.That(t, conf.Validate("path"), test.ShouldBeNil)

	for field, mutate := range map[string]func(*Config){
		"spi_bus":  func(c *Config) { c.SPIBus = "" },
		"xcs_pin":  func(c *Config) { c.XCSPin = "" },
		"xdcs_pin": func(c *Config) { c.XDCSPin = "" },
		"dreq_pin": func(c *Config) { c.DREQPin = "" },
	} {
		c := testConfig()
		mutate(&c)
		err := c.Validate("path")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, field)
	}

	negative := -1
	nan := math.NaN()
	loud := 1.5
	for name, mutate := range map[string]func(*Config){
		"dreq timeout": func(c *Config) { c.DREQTimeoutMs = &negative },
		"threshold":    func(c *Config) { c.FlushThreshold = -1 },
		"fill buffer":  func(c *Config) { c.FillBufferSize = 1 },
		"nan volume":   func(c *Config) { c.Volume = &nan },
		"loud volume":  func(c *Config) { c.Volume = &loud },
		"input":        func(c *Config) { c.Input = "radio" },
		"output":       func(c *Config) { c.Output = "speaker" },
	} {
		t.Run(name, func(t *testing.T) {
			c := testConfig()
			mutate(&c)
			test.That(t, c.Validate("path"), test.ShouldNotBeNil)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	conf := Config{SPIBus: "main", XCSPin: "a", XDCSPin: "b", DREQPin: "c"}.withDefaults()
	test.That(t, conf.InitialClockHz, test.ShouldEqual, DefaultInitialClockHz)
	test.That(t, conf.FastClockHz, test.ShouldEqual, DefaultFastClockHz)
	test.That(t, conf.PluginDir, test.ShouldEqual, DefaultPluginDir)
	test.That(t, conf.FlushThreshold, test.ShouldEqual, DefaultFlushThreshold)
	test.That(t, conf.FillBufferSize, test.ShouldEqual, DefaultFillBufferSize)
	test.That(t, conf.dreqTimeout(), test.ShouldEqual, time.Second)

	unbounded := 0
	conf = Config{DREQTimeoutMs: &unbounded}.withDefaults()
	test.That(t, conf.dreqTimeout(), test.ShouldEqual, time.Duration(0))
}
