package vs10xx

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"go.viam.com/vs10xx/utils"
)

// An EventType names something a Device reports asynchronously.
type EventType string

// Device events.
const (
	EventReady          EventType = "ready"
	EventError          EventType = "error"
	EventPlay           EventType = "play"
	EventEnd            EventType = "end"
	EventStartRecording EventType = "startRecording"
	EventStopRecording  EventType = "stopRecording"
	EventData           EventType = "data"
)

// An Event is delivered to subscribed handlers. Which fields are set depends on Type.
type Event struct {
	Type EventType
	// Track is set for play and end.
	Track *Track
	// Err is set for error, and for end when the track failed.
	Err error
	// Data is a recorded chunk the handler owns.
	Data []byte
	// Session is set for startRecording, data and stopRecording.
	Session *RecordingSession
}

// A Handler receives events. Handlers run one event at a time, in emission order, on a
// goroutine owned by the Device, so a handler may call Device operations. Later events wait
// until it returns. A handler must not call Close.
type Handler func(Event)

// A Subscription identifies a subscribed handler.
type Subscription struct {
	id  uint64
	typ EventType
}

type subscriber struct {
	id      uint64
	handler Handler
	active  *atomic.Bool
}

// emitter queues events and delivers them from a single worker. Subscribers are fixed when the
// event is emitted; one unsubscribed before delivery is skipped.
type emitter struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[EventType][]*subscriber

	queueMu sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	workers *utils.StoppableWorkers
}

func newEmitter() *emitter {
	em := &emitter{
		handlers: map[EventType][]*subscriber{},
		wake:     make(chan struct{}, 1),
	}
	em.workers = utils.NewStoppableWorkers(em.run)
	return em
}

func (em *emitter) subscribe(typ EventType, h Handler) Subscription {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.nextID++
	em.handlers[typ] = append(em.handlers[typ], &subscriber{id: em.nextID, handler: h, active: atomic.NewBool(true)})
	return Subscription{id: em.nextID, typ: typ}
}

func (em *emitter) unsubscribe(sub Subscription) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[sub.typ] = lo.Reject(em.handlers[sub.typ], func(s *subscriber, _ int) bool {
		if s.id == sub.id {
			s.active.Store(false)
			return true
		}
		return false
	})
}

func (em *emitter) emit(ev Event) {
	em.mu.Lock()
	subs := append([]*subscriber(nil), em.handlers[ev.Type]...)
	em.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	em.enqueue(func() {
		for _, s := range subs {
			if s.active.Load() {
				s.handler(ev)
			}
		}
	})
}

// enqueue hands f to the worker, or runs it in place once the emitter is closed.
func (em *emitter) enqueue(f func()) {
	em.queueMu.Lock()
	if em.stopped {
		em.queueMu.Unlock()
		f()
		return
	}
	em.queue = append(em.queue, f)
	em.queueMu.Unlock()
	select {
	case em.wake <- struct{}{}:
	default:
	}
}

func (em *emitter) take() []func() {
	em.queueMu.Lock()
	defer em.queueMu.Unlock()
	q := em.queue
	em.queue = nil
	return q
}

func (em *emitter) run(ctx context.Context) {
	for {
		if batch := em.take(); len(batch) > 0 {
			for _, f := range batch {
				f()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-em.wake:
		}
	}
}

// close stops the worker and delivers whatever it left queued.
func (em *emitter) close() {
	em.workers.Stop()
	em.queueMu.Lock()
	em.stopped = true
	rest := em.queue
	em.queue = nil
	em.queueMu.Unlock()
	for _, f := range rest {
		f()
	}
}

// Subscribe registers h for events of type typ.
func (d *Device) Subscribe(typ EventType, h Handler) Subscription {
	return d.events.subscribe(typ, h)
}

// Unsubscribe removes a handler. Unsubscribing twice does nothing.
func (d *Device) Unsubscribe(sub Subscription) {
	d.events.unsubscribe(sub)
}
