package cli

import (
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-audio/wav"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx"
	"go.viam.com/vs10xx/config"
)

// streamChunk is how much of a file StreamAction writes at a time.
const streamChunk = 4096

// PlayAction queues every file and waits for all of them.
func PlayAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no files to play")
	}
	var clips [][]byte
	for _, path := range c.Args().Slice() {
		data, err := readClip(c, path)
		if err != nil {
			return err
		}
		clips = append(clips, data)
	}
	return withCodec(c, func(cc *codecClient) error {
		var tracks []*vs10xx.Track
		for i, data := range clips {
			track, err := cc.device.Queue(c.Context, data)
			if err != nil {
				return errors.Wrapf(err, "cannot queue %s", c.Args().Get(i))
			}
			if track != nil {
				tracks = append(tracks, track)
			}
		}
		var err error
		for _, t := range tracks {
			err = multierr.Append(err, t.Wait(c.Context))
		}
		if err == nil {
			printf(c, "played %d file(s)", len(tracks))
		}
		return err
	})
}

// readClip reads a whole file. WAV files are checked and described first, since the codec
// silently skips a malformed header.
func readClip(c *cli.Context, path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if err := describeWAV(c, path); err != nil {
			return nil, err
		}
	}
	return os.ReadFile(path)
}

func describeWAV(c *cli.Context, path string) error {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return errors.Errorf("%s is not a valid WAV file", path)
	}
	dur, err := dec.Duration()
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", path)
	}
	printf(c, "%s: %d Hz, %d channel(s), %d bit, %s",
		filepath.Base(path), dec.SampleRate, dec.NumChans, dec.BitDepth, dur.Round(time.Millisecond))
	return nil
}

// StreamAction feeds a file through a PlayStream.
func StreamAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("stream takes exactly one file")
	}
	//nolint:gosec
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	return withCodec(c, func(cc *codecClient) error {
		s := cc.device.NewPlayStream(c.Context)
		n, err := io.CopyBuffer(s, f, make([]byte, streamChunk))
		if err := multierr.Combine(err, s.Close()); err != nil {
			return err
		}
		if err := s.Wait(c.Context); err != nil {
			return err
		}
		printf(c, "streamed %d bytes", n)
		return nil
	})
}

// RecordAction records until the duration passes or the process is interrupted.
func RecordAction(c *cli.Context) error {
	out, err := os.Create(c.String(flagOut))
	if err != nil {
		return err
	}
	defer out.Close()

	return withCodec(c, func(cc *codecClient) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := cc.device.NewRecordStream(ctx, c.String(flagProfile))
		if err != nil {
			return err
		}
		printf(c, "recording %s (session %s)", s.Session().Profile, s.Session().ID)

		var timeout <-chan time.Time
		if d := c.Duration(flagDuration); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}
		stopped := make(chan error, 1)
		go func() {
			select {
			case <-ctx.Done():
			case <-timeout:
			}
			stopped <- s.Close()
		}()

		n, err := io.Copy(out, s)
		if err != nil {
			return multierr.Combine(err, s.Close())
		}
		stop()
		if err := <-stopped; err != nil {
			return err
		}
		printf(c, "wrote %d bytes to %s", n, c.String(flagOut))
		return nil
	})
}

// VolumeAction sets the volume from one or two levels in [0, 1].
func VolumeAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return errors.New("volume takes LEFT [RIGHT]")
	}
	var levels []float64
	for _, arg := range c.Args().Slice() {
		level, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return errors.Wrapf(err, "bad volume %q", arg)
		}
		if math.IsNaN(level) || level < 0 || level > 1 {
			return errors.Errorf("volume must be within [0, 1], got %v", arg)
		}
		levels = append(levels, level)
	}
	return withCodec(c, func(cc *codecClient) error {
		if err := cc.device.SetVolume(c.Context, levels...); err != nil {
			return err
		}
		left, right, err := cc.device.Attenuation(c.Context)
		if err != nil {
			return err
		}
		printf(c, "attenuation left=%d right=%d", left, right)
		return nil
	})
}

// InputAction routes the codec input.
func InputAction(c *cli.Context) error {
	in, err := vs10xx.ParseInput(c.Args().First())
	if err != nil {
		return err
	}
	return withCodec(c, func(cc *codecClient) error {
		if err := cc.device.SetInput(c.Context, in); err != nil {
			return err
		}
		printf(c, "input: %s", cc.device.Input())
		return nil
	})
}

// OutputAction routes the codec output.
func OutputAction(c *cli.Context) error {
	out, err := vs10xx.ParseOutput(c.Args().First())
	if err != nil {
		return err
	}
	return withCodec(c, func(cc *codecClient) error {
		if err := cc.device.SetOutput(c.Context, out); err != nil {
			return err
		}
		printf(c, "output: %s", cc.device.Output())
		return nil
	})
}

// ProfilesAction lists the recording profiles and whether their plugin is present.
func ProfilesAction(c *cli.Context) error {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return err
	}
	dir := cfg.Codec.PluginDir
	if dir == "" {
		dir = vs10xx.DefaultPluginDir
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"", "Profile", "Plugin"})
	for _, p := range vs10xx.RecordingProfiles() {
		status := "missing"
		if _, err := os.Stat(filepath.Join(dir, p+".img")); err == nil {
			status = "ok"
		}
		marker := ""
		if p == vs10xx.DefaultRecordingProfile {
			marker = "*"
		}
		t.AppendRow(table.Row{marker, p, status})
	}
	printf(c, "%s", t.Render())
	return nil
}

// RunAction keeps the codec initialized and applies setting changes from the config file.
func RunAction(c *cli.Context) error {
	return withCodec(c, func(cc *codecClient) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := config.NewWatcher(cc.cfg, cc.device, cc.logger.Sublogger("config"))
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				cc.logger.Warnw("closing config watcher", "error", err)
			}
		}()

		sub := cc.device.Subscribe(vs10xx.EventError, func(ev vs10xx.Event) {
			cc.logger.Errorw("codec error", "error", ev.Err)
		})
		defer cc.device.Unsubscribe(sub)

		printf(c, "codec ready, watching %s", cc.cfg.ConfigFilePath)
		<-ctx.Done()
		// a signal is a clean exit
		return c.Context.Err()
	})
}
