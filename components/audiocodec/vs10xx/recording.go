package vs10xx

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultRecordingProfile is used when StartRecording is given no profile.
const DefaultRecordingProfile = "hifi-voice"

var recordingProfiles = []string{
	"voice",
	"wideband-voice",
	"wideband-stereo",
	"hifi-voice",
	"stereo-music",
}

// RecordingProfiles lists the recording profiles in order. Each needs a <profile>.img encoder
// plugin in the plugin directory.
func RecordingProfiles() []string {
	return append([]string(nil), recordingProfiles...)
}

// AvailableRecordingProfiles lists the recording profiles in order.
func (d *Device) AvailableRecordingProfiles() []string {
	return RecordingProfiles()
}

// A RecordingSession describes one recording, from StartRecording to its stopRecording event.
type RecordingSession struct {
	ID      uuid.UUID
	Profile string
	Started time.Time
}

type activeRecording struct {
	session   *RecordingSession
	announced chan struct{}
	done      chan struct{}
	once      sync.Once
}

func (r *activeRecording) finish() {
	r.once.Do(func() { close(r.done) })
}

// StartRecording loads the plugin for profile and starts recording. Recorded chunks arrive as
// data events.
func (d *Device) StartRecording(ctx context.Context, profile string) (*RecordingSession, error) {
	if profile == "" {
		profile = DefaultRecordingProfile
	}
	if !lo.Contains(recordingProfiles, profile) {
		return nil, &InvalidProfileError{Profile: profile}
	}
	path := filepath.Join(d.conf.PluginDir, profile+".img")

	var session *RecordingSession
	err := d.do(ctx, func(ctx context.Context) error {
		d.recMu.Lock()
		if d.rec != nil {
			d.recMu.Unlock()
			return ErrWrongState
		}
		rec := &activeRecording{
			session:   &RecordingSession{ID: uuid.New(), Profile: profile, Started: d.clk.Now()},
			announced: make(chan struct{}),
			done:      make(chan struct{}),
		}
		d.rec = rec
		d.recMu.Unlock()

		if code := d.engine.StartRecording(ctx, path, d.fill); code < 0 {
			d.recMu.Lock()
			d.rec = nil
			d.recMu.Unlock()
			close(rec.announced)
			return recordingError(code)
		}
		d.logger.Infow("recording started", "profile", profile, "session", rec.session.ID)
		d.events.emit(Event{Type: EventStartRecording, Session: rec.session})
		close(rec.announced)
		session = rec.session
		return nil
	})
	return session, err
}

// StopRecording stops the active recording and waits until its last chunk was delivered.
// With nothing recording it fails with ErrWrongState.
func (d *Device) StopRecording(ctx context.Context) error {
	return d.do(ctx, func(ctx context.Context) error {
		d.recMu.Lock()
		rec := d.rec
		d.recMu.Unlock()

		if d.engine.StopRecording(ctx) < 0 || rec == nil {
			return ErrWrongState
		}
		select {
		case <-rec.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Recording returns the active recording session, if any.
func (d *Device) Recording() *RecordingSession {
	d.recMu.Lock()
	defer d.recMu.Unlock()
	if d.rec == nil {
		return nil
	}
	return d.rec.session
}

func (d *Device) recordingData(n int) {
	d.recMu.Lock()
	rec := d.rec
	d.recMu.Unlock()
	if rec == nil || n <= 0 {
		return
	}
	<-rec.announced
	d.events.emit(Event{Type: EventData, Data: d.copyFill(n), Session: rec.session})
}

func (d *Device) recordingComplete(n int) {
	d.recMu.Lock()
	rec := d.rec
	d.rec = nil
	d.recMu.Unlock()
	if rec == nil {
		d.logger.Debug("recording completion with no active recording")
		return
	}
	<-rec.announced
	if n > 0 {
		d.events.emit(Event{Type: EventData, Data: d.copyFill(n), Session: rec.session})
	}
	d.logger.Infow("recording stopped", "session", rec.session.ID)
	d.events.emit(Event{Type: EventStopRecording, Session: rec.session})
	rec.finish()
}

// copyFill copies out of the fill buffer, which the engine reuses after each notification.
func (d *Device) copyFill(n int) []byte {
	if n > len(d.fill) {
		n = len(d.fill)
	}
	chunk := make([]byte, n)
	copy(chunk, d.fill[:n])
	return chunk
}
