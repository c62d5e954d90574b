package backtester

import (
	"sync"
	"time"

	"github.com/ridopark/algoreplay/pkg/status"
	"github.com/ridopark/algoreplay/pkg/strategy"
)

// Event represents something the engine reports while running
type Event interface {
	GetTimestamp() time.Time
	GetType() EventType
}

// EventType represents the type of event
type EventType string

const (
	EventTypeSnapshot EventType = "SNAPSHOT"
	EventTypeOrder    EventType = "ORDER"
	EventTypeFill     EventType = "FILL"
	EventTypeDone     EventType = "DONE"
)

// SnapshotEvent is emitted after a snapshot's state has been committed
type SnapshotEvent struct {
	Ticker string
	Index  int
	Total  int
	Entry  *strategy.HistoryEntry
	Date   time.Time
}

func (e SnapshotEvent) GetTimestamp() time.Time {
	return e.Date
}

func (e SnapshotEvent) GetType() EventType {
	return EventTypeSnapshot
}

// OrderEvent is emitted for every executed order, filled or rejected
type OrderEvent struct {
	Result strategy.OrderResult
}

func (e OrderEvent) GetTimestamp() time.Time {
	return e.Result.Date
}

func (e OrderEvent) GetType() EventType {
	if e.Result.Filled() {
		return EventTypeFill
	}
	return EventTypeOrder
}

// DoneEvent is emitted once when a run reaches a terminal state
type DoneEvent struct {
	Ticker string
	Status status.Code
	At     time.Time
}

func (e DoneEvent) GetTimestamp() time.Time {
	return e.At
}

func (e DoneEvent) GetType() EventType {
	return EventTypeDone
}

// Listener receives engine events. Listeners shared between runs of
// different tickers must be safe for concurrent use.
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(event Event)

// OnEvent calls f(event)
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// EventRecorder collects events in arrival order
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewEventRecorder creates an empty recorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{
		events: make([]Event, 0),
	}
}

// OnEvent appends the event
func (r *EventRecorder) OnEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of the given type
func (r *EventRecorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.GetType() == t {
			n++
		}
	}
	return n
}
