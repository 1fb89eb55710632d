package vs10xx

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/engine"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

// A Track is one buffer handed to the engine for playback.
type Track struct {
	ID     engine.StreamID
	Length int

	announced chan struct{}
	done      chan struct{}
	once      sync.Once
	err       error
	dropped   bool
}

func newTrack(id engine.StreamID, length int) *Track {
	return &Track{
		ID:        id,
		Length:    length,
		announced: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Done is closed once the track finished playing, was dropped, or failed.
func (t *Track) Done() <-chan struct{} {
	return t.done
}

// Err is why the track failed, once Done is closed.
func (t *Track) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Dropped reports whether a later Play, a Stop or Close discarded the track before it finished
// playing. It is false until Done is closed.
func (t *Track) Dropped() bool {
	select {
	case <-t.done:
		return t.dropped
	default:
		return false
	}
}

// Wait blocks until the track is done.
func (t *Track) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Track) resolve(err error, dropped bool) {
	t.once.Do(func() {
		t.err = err
		t.dropped = dropped
		close(t.done)
	})
}

// Play stops whatever is playing and plays buf. An empty buf returns a nil Track and does
// nothing.
func (d *Device) Play(ctx context.Context, buf []byte) (*Track, error) {
	return d.submit(ctx, buf, d.engine.PlayBuffer)
}

// Queue plays buf after everything already submitted. An empty buf returns a nil Track and
// does nothing.
func (d *Device) Queue(ctx context.Context, buf []byte) (*Track, error) {
	return d.submit(ctx, buf, d.engine.QueueBuffer)
}

func (d *Device) submit(
	ctx context.Context,
	buf []byte,
	primitive func(context.Context, []byte) engine.StreamID,
) (*Track, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var track *Track
	err := d.do(ctx, func(ctx context.Context) error {
		d.tracksMu.Lock()
		if err := d.bus.Acquire(ctx); err != nil {
			d.tracksMu.Unlock()
			return err
		}
		id := primitive(ctx, buf)
		if id < 0 {
			var err error
			if len(d.tracks) == 0 {
				err = d.bus.Release()
			}
			d.tracksMu.Unlock()
			return multierr.Combine(streamError(id), err)
		}
		track = newTrack(id, len(buf))
		d.tracks[id] = track
		d.tracksMu.Unlock()

		d.events.emit(Event{Type: EventPlay, Track: track})
		close(track.announced)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// PendingTracks is the number of tracks the engine has not finished.
func (d *Device) PendingTracks() int {
	d.tracksMu.Lock()
	defer d.tracksMu.Unlock()
	return len(d.tracks)
}

// BusHeld reports whether the device holds the SPI bus lock for playback.
func (d *Device) BusHeld() bool {
	return d.bus.Held()
}

func (d *Device) playbackComplete(id engine.StreamID, how engine.Completion) {
	d.tracksMu.Lock()
	track, ok := d.tracks[id]
	if !ok {
		d.tracksMu.Unlock()
		d.logger.Debugw("completion for unknown stream", "stream", id)
		return
	}
	delete(d.tracks, id)
	var releaseErr error
	if len(d.tracks) == 0 {
		releaseErr = d.bus.Release()
	}
	d.tracksMu.Unlock()
	if releaseErr != nil {
		d.logger.Warnw("cannot release bus", "error", releaseErr)
	}

	var err error
	if how == engine.Failed {
		err = &sci.BusTransferError{Op: "playback", Err: errors.Errorf("engine failed stream %d", id)}
	}
	track.resolve(err, how == engine.Dropped)
	<-track.announced
	d.events.emit(Event{Type: EventEnd, Track: track, Err: err})
}

// Pause pauses playback and gives the bus back.
func (d *Device) Pause(ctx context.Context) error {
	return d.do(ctx, func(ctx context.Context) error {
		if d.engine.PauseBuffer(ctx) < 0 {
			return ErrNotPlaying
		}
		return d.bus.Release()
	})
}

// Resume continues paused playback, taking the bus again if tracks are pending.
func (d *Device) Resume(ctx context.Context) error {
	return d.do(ctx, func(ctx context.Context) error {
		d.tracksMu.Lock()
		if len(d.tracks) > 0 {
			if err := d.bus.Acquire(ctx); err != nil {
				d.tracksMu.Unlock()
				return err
			}
		}
		d.tracksMu.Unlock()
		if d.engine.ResumeBuffer(ctx) < 0 {
			return ErrNotPlaying
		}
		return nil
	})
}

// Stop drops everything submitted and gives the bus back. Play and Queue calls already
// waiting behind Stop still run afterwards.
func (d *Device) Stop(ctx context.Context) error {
	return d.do(ctx, func(ctx context.Context) error {
		if d.engine.StopBuffer(ctx) < 0 {
			return ErrInvalidState
		}
		return d.bus.Release()
	})
}
