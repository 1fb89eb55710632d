package vs10xx

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

// Initialize brings the chip up: soft reset, version check, clock configuration and default
// routing. It runs as a single serialized entry, so operations placed meanwhile run after it.
// The error is returned, never emitted; success emits ready.
func (d *Device) Initialize(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(Uninitialized), int32(SoftResetting)) {
		if d.State() == Ready {
			return nil
		}
		return d.checkReady()
	}

	err := d.serial.Do(ctx, func(ctx context.Context) error {
		if err := d.initialize(ctx); err != nil {
			d.fail(err)
			return err
		}
		d.setState(Ready)
		return nil
	})
	if err != nil {
		// Canceled before the entry ran, or the serializer closed under us.
		if d.State() != Failed && d.State() != Closed {
			d.fail(err)
		}
		return err
	}
	d.logger.Infow("codec ready", "clock_hz", d.conn.ClockSpeed())
	d.events.emit(Event{Type: EventReady})
	return nil
}

func (d *Device) fail(err error) {
	d.mu.Lock()
	d.initErr = err
	d.mu.Unlock()
	if d.State() != Closed {
		d.setState(Failed)
	}
	d.logger.Errorw("codec initialization failed", "error", err)
}

func (d *Device) initialize(ctx context.Context) error {
	d.setState(SoftResetting)
	if err := d.conn.SoftReset(ctx, sci.ModeDefault); err != nil {
		return errors.Wrap(err, "soft reset")
	}

	d.setState(VersionChecking)
	if err := d.checkVersion(ctx); err != nil {
		return err
	}

	d.setState(ClockConfiguring)
	if err := d.conn.WriteRegister16(ctx, sci.ClockF, sci.ClockFDecode); err != nil {
		return errors.Wrap(err, "configuring clock")
	}
	d.conn.SetClockSpeed(d.conf.FastClockHz)

	d.setState(DefaultIOConfiguring)
	if err := d.setDefaultIO(ctx); err != nil {
		return errors.Wrap(err, "configuring default io")
	}
	return nil
}

func (d *Device) checkVersion(ctx context.Context) error {
	status, err := d.conn.ReadRegister16(ctx, sci.Status)
	if err != nil {
		return errors.Wrap(err, "reading status")
	}
	if v := sci.Version(status); v != sci.ExpectedVersion {
		return &UnsupportedVersionError{Version: v}
	}
	return nil
}

func (d *Device) setDefaultIO(ctx context.Context) error {
	if err := d.conn.WriteWRAM(ctx, sci.GPIODir, 1<<sci.OutputSelectBit|1<<sci.InputSelectBit); err != nil {
		return err
	}
	if err := d.routeInput(ctx, InputMicrophone); err != nil {
		return err
	}
	if err := d.routeOutput(ctx, OutputHeadphones); err != nil {
		return err
	}
	return d.applySettings(ctx, d.conf.Settings)
}
