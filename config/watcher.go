package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx"
	"go.viam.com/vs10xx/logging"
	"go.viam.com/vs10xx/utils"
)

// settleTime lets an editor finish writing before the file is read again.
const settleTime = 100 * time.Millisecond

// An Applier takes new codec settings. *vs10xx.Device is one.
type Applier interface {
	Apply(ctx context.Context, s vs10xx.Settings) error
}

// A Watcher applies the volume, input and output of a config file whenever it changes. Changes
// to anything else are logged and need a restart.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	applier Applier
	logger  logging.Logger
	workers *utils.StoppableWorkers
	current *Config
}

// NewWatcher watches the file current was read from.
func NewWatcher(current *Config, applier Applier, logger logging.Logger) (*Watcher, error) {
	if current.ConfigFilePath == "" {
		return nil, errors.New("config was not read from a file")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file, so watch the directory.
	if err := fs.Add(filepath.Dir(current.ConfigFilePath)); err != nil {
		return nil, multierr.Combine(err, fs.Close())
	}
	w := &Watcher{
		path:    filepath.Clean(current.ConfigFilePath),
		fs:      fs,
		applier: applier,
		logger:  logger,
		current: current,
	}
	w.workers = utils.NewStoppableWorkers(w.run)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			settle = time.After(settleTime)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watch error", "error", err)
		case <-settle:
			settle = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	next, err := Read(w.path)
	if err != nil {
		w.logger.Warnw("ignoring invalid config change", "path", w.path, "error", err)
		return
	}
	if !sameWiring(w.current, next) {
		w.logger.Warn("config changes besides volume, input and output need a restart")
	}
	if err := w.applier.Apply(ctx, next.Codec.Settings); err != nil {
		w.logger.Errorw("cannot apply config change", "error", err)
		return
	}
	w.logger.Infow("applied config change", "path", w.path)
	w.current = next
}

// sameWiring reports whether two configs differ only in their settings.
func sameWiring(a, b *Config) bool {
	ac, bc := a.Codec, b.Codec
	return ac.SPIBus == bc.SPIBus &&
		ac.SPIChipSelect == bc.SPIChipSelect &&
		ac.XCSPin == bc.XCSPin &&
		ac.XDCSPin == bc.XDCSPin &&
		ac.DREQPin == bc.DREQPin &&
		ac.PluginDir == bc.PluginDir &&
		ac.FlushThreshold == bc.FlushThreshold &&
		ac.FillBufferSize == bc.FillBufferSize &&
		len(a.Board.SPIs) == len(b.Board.SPIs) &&
		len(a.Board.Pins) == len(b.Board.Pins)
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.fs.Close()
}
