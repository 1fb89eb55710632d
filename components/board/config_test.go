package board

import (
	"testing"

	"go.viam.com/test"
)

func TestSPIConfigValidate(t *testing.T) {
	conf := SPIConfig{}
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"name" is required`)

	conf.Name = "main"
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"bus_select" is required`)

	conf.BusSelect = "0"
	test.That(t, conf.Validate("path"), test.ShouldBeNil)
}

func TestPinConfigValidate(t *testing.T) {
	line := 17
	negative := -1
	for _, tc := range []struct {
		name   string
		conf   PinConfig
		errMsg string
	}{
		{"missing name", PinConfig{Pin: "GPIO4"}, `"name" is required`},
		{"missing pin", PinConfig{Name: "dreq"}, `"pin" is required`},
		{"both set", PinConfig{Name: "dreq", Pin: "GPIO4", Chip: "/dev/gpiochip0", Line: &line}, "only one of"},
		{"chip without line", PinConfig{Name: "dreq", Chip: "/dev/gpiochip0"}, `"line" is required`},
		{"negative line", PinConfig{Name: "dreq", Chip: "/dev/gpiochip0", Line: &negative}, "non-negative"},
		{"global name", PinConfig{Name: "dreq", Pin: "GPIO4"}, ""},
		{"chardev", PinConfig{Name: "dreq", Chip: "/dev/gpiochip0", Line: &line, Input: true}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conf.Validate("board.pins.0")
			if tc.errMsg == "" {
				test.That(t, err, test.ShouldBeNil)
				return
			}
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
			test.That(t, err.Error(), test.ShouldContainSubstring, "board.pins.0")
		})
	}
}
