// Package eventbus fans out coordination events to interested subscribers
// without ever letting a slow subscriber block emission (spec.md §4.1).
package eventbus

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrison/orchestra/internal/models"
)

// queueDepth bounds each subscriber's pending-event queue. Overflow drops
// the oldest queued event rather than blocking the emitter.
const queueDepth = 256

var (
	eventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestra_events_emitted_total",
		Help: "Coordination events emitted by type.",
	}, []string{"type"})

	eventsDropped = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestra_eventbus_dropped_total",
		Help: "Events dropped per subscriber due to a full queue (drop-oldest).",
	}, []string{"subscriber"})
)

func init() {
	prometheus.MustRegister(eventsEmitted, eventsDropped)
}

// Handler receives events delivered in per-subscriber FIFO order.
type Handler func(models.Event)

// subscription is one registered handler with its own bounded queue and
// a dedicated goroutine draining it, so a slow handler only ever delays
// itself.
type subscription struct {
	id      int
	handler Handler
	queue   chan models.Event
	dropped int64
	done    chan struct{}
}

// Bus is the single entry point for emitting and subscribing to
// coordination events. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers handler and returns an unsubscribe function.
// Delivery to this handler is FIFO relative to other events seen by the
// same handler; it never blocks Emit.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscription{
		id:      id,
		handler: handler,
		queue:   make(chan models.Event, queueDepth),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.drain()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(sub.done)
	}
}

func (s *subscription) drain() {
	for {
		select {
		case ev := <-s.queue:
			s.handler(ev)
		case <-s.done:
			return
		}
	}
}

// Emit fans event out to every current subscriber. It never blocks: if a
// subscriber's queue is full, the oldest queued event for that subscriber
// is dropped (best-effort, observable via DroppedCount) and emission
// proceeds immediately for every other subscriber.
func (b *Bus) Emit(ev models.Event) {
	eventsEmitted.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscription, ev models.Event) {
	select {
	case sub.queue <- ev:
		return
	default:
	}

	// Queue full: drop the oldest entry to make room, never block the emitter.
	select {
	case <-sub.queue:
		atomic.AddInt64(&sub.dropped, 1)
		eventsDropped.WithLabelValues(subscriberLabel(sub.id)).Set(float64(atomic.LoadInt64(&sub.dropped)))
	default:
	}
	select {
	case sub.queue <- ev:
	default:
		// Another emitter raced us and refilled the queue; drop this event too.
		atomic.AddInt64(&sub.dropped, 1)
		eventsDropped.WithLabelValues(subscriberLabel(sub.id)).Set(float64(atomic.LoadInt64(&sub.dropped)))
	}
}

// DroppedCount returns, for test visibility, the total dropped-event count
// across every subscription still registered.
func (b *Bus) DroppedCount() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total int64
	for _, sub := range b.subs {
		total += atomic.LoadInt64(&sub.dropped)
	}
	return total
}

func subscriberLabel(id int) string {
	return "sub-" + strconv.Itoa(id)
}
