package vs10xx

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

// MaxAttenuation is the quietest level SetVolume writes. 0xFF turns the channel off.
const MaxAttenuation = 0xFE

// NormalizeVolume maps a level in [0, 1] to chip attenuation, 0 being loudest. Levels outside
// [0, 1] are clamped.
func NormalizeVolume(level float64) uint8 {
	level = math.Max(0, math.Min(1, level))
	return uint8(math.Round((1 - level) * MaxAttenuation))
}

// SetVolume sets the output level. No level is a no-op, one level applies to both channels,
// and two levels are left and right.
func (d *Device) SetVolume(ctx context.Context, levels ...float64) error {
	var left, right float64
	switch len(levels) {
	case 0:
		return nil
	case 1:
		left, right = levels[0], levels[0]
	case 2:
		left, right = levels[0], levels[1]
	default:
		return errors.Wrapf(ErrInvalidArgument, "expected at most 2 volume levels, got %d", len(levels))
	}
	if math.IsNaN(left) || math.IsNaN(right) {
		return errors.Wrap(ErrInvalidArgument, "volume cannot be NaN")
	}
	return d.do(ctx, func(ctx context.Context) error {
		return d.writeVolume(ctx, NormalizeVolume(left), NormalizeVolume(right))
	})
}

// Attenuation reads back the raw per-channel attenuation.
func (d *Device) Attenuation(ctx context.Context) (left, right uint8, err error) {
	err = d.do(ctx, func(ctx context.Context) error {
		word, err := d.conn.ReadRegister16(ctx, sci.Vol)
		if err != nil {
			return err
		}
		left, right = uint8(word>>8), uint8(word)
		return nil
	})
	return left, right, err
}

// Volume reads back the per-channel level.
func (d *Device) Volume(ctx context.Context) (left, right float64, err error) {
	l, r, err := d.Attenuation(ctx)
	if err != nil {
		return 0, 0, err
	}
	return attenuationToLevel(l), attenuationToLevel(r), nil
}

func attenuationToLevel(a uint8) float64 {
	if a >= MaxAttenuation {
		return 0
	}
	return 1 - float64(a)/MaxAttenuation
}

func (d *Device) writeVolume(ctx context.Context, left, right uint8) error {
	return d.conn.WriteRegister(ctx, sci.Vol, left, right)
}
