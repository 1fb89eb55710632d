package vs10xx

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/logging"
	"go.viam.com/vs10xx/utils"
)

// An Op is one entry of a Serializer. The entry is finished only once it calls next, which
// it may do from any goroutine after any number of asynchronous steps.
type Op func(next func())

type entry struct {
	op    Op
	abort func(error)
}

// A Serializer runs operations strictly one at a time in the order they were placed.
type Serializer struct {
	logger  logging.Logger
	wake    chan struct{}
	workers *utils.StoppableWorkers

	mu      sync.Mutex
	pending []entry
	closed  bool
}

// NewSerializer starts a serializer.
func NewSerializer(logger logging.Logger) *Serializer {
	s := &Serializer{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	s.workers = utils.NewStoppableWorkers(s.run)
	return s
}

// Place appends op. It returns false once the serializer is closed.
func (s *Serializer) Place(op Op) bool {
	return s.place(entry{op: op})
}

func (s *Serializer) place(e entry) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, e)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn as one entry and waits for its result. fn's entry finishes when fn returns.
func (s *Serializer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	placed := s.place(entry{
		op: func(next func()) {
			defer next()
			if err := ctx.Err(); err != nil {
				result <- err
				return
			}
			defer func() {
				if r := recover(); r != nil {
					result <- errors.Errorf("operation panicked: %v", r)
				}
			}()
			result <- fn(ctx)
		},
		abort: func(err error) { result <- err },
	})
	if !placed {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of entries waiting, not counting the one running.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the serializer. Entries that have not started are aborted with ErrClosed.
func (s *Serializer) Close() {
	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.workers.Stop()
	for _, e := range pending {
		if e.abort != nil {
			e.abort(ErrClosed)
		}
	}
}

func (s *Serializer) run(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 || s.closed {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		e := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		done := make(chan struct{})
		var once sync.Once
		next := func() { once.Do(func() { close(done) }) }
		s.invoke(e.op, next)

		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Serializer) invoke(op Op, next func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("serialized operation panicked", "panic", r)
			next()
		}
	}()
	op(next)
}
