package orchestrator

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// EventEmitter fans events out to subscribers without ever blocking the
// coordinator loop. A subscriber that falls behind loses events; it still
// converges because every event means "re-read the board".
type EventEmitter struct {
	mu           sync.Mutex
	next         int
	subs         map[int]chan Event
	bufferSize   int
	droppedCount atomic.Uint64
	log          *slog.Logger
}

// NewEventEmitter creates an EventEmitter whose subscriber channels hold
// bufferSize events.
func NewEventEmitter(bufferSize int, log *slog.Logger) *EventEmitter {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &EventEmitter{subs: make(map[int]chan Event), bufferSize: bufferSize, log: log}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (e *EventEmitter) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	ch := make(chan Event, e.bufferSize)
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// Emit delivers event to every subscriber with room in its buffer.
func (e *EventEmitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- event:
		default:
			count := e.droppedCount.Add(1)
			if count%100 == 1 {
				e.log.Debug("subscriber behind, event dropped", "type", event.Type, "dropped_total", count)
			}
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Close unsubscribes everyone.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
