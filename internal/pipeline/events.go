package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventType identifies an engine event.
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventStageError     EventType = "stage_error"
	EventRunCompleted   EventType = "run_completed"
)

// Event is one notification about a run.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Stage     string         `json:"stage,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventListener handles an event. Its error is reported back to Emit but
// never affects the run.
type EventListener func(ctx context.Context, event *Event) error

// EventEmitter dispatches engine events to listeners.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	async     bool
}

// NewEventEmitter creates an emitter. With async set, listeners of one
// event run concurrently and Emit waits for all of them.
func NewEventEmitter(async bool) *EventEmitter {
	return &EventEmitter{
		listeners: make(map[EventType][]EventListener),
		async:     async,
	}
}

// On registers listener for eventType.
func (e *EventEmitter) On(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// OnAll registers listener for every engine event type.
func (e *EventEmitter) OnAll(listener EventListener) {
	for _, t := range []EventType{EventStageStarted, EventStageCompleted, EventStageError, EventRunCompleted} {
		e.On(t, listener)
	}
}

// Off removes all listeners for eventType.
func (e *EventEmitter) Off(eventType EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, eventType)
}

// Emit dispatches event and returns the last listener error.
func (e *EventEmitter) Emit(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	listeners := make([]EventListener, len(e.listeners[event.Type]))
	copy(listeners, e.listeners[event.Type])
	e.mu.RUnlock()

	if e.async {
		return emitAsync(ctx, event, listeners)
	}
	var last error
	for _, l := range listeners {
		if err := l(ctx, event); err != nil {
			last = err
		}
	}
	return last
}

func emitAsync(ctx context.Context, event *Event, listeners []EventListener) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(listeners))
	for _, l := range listeners {
		wg.Add(1)
		go func(l EventListener) {
			defer wg.Done()
			if err := l(ctx, event); err != nil {
				errs <- err
			}
		}(l)
	}
	wg.Wait()
	close(errs)

	var last error
	for err := range errs {
		last = err
	}
	return last
}

// ListenerCount returns the number of listeners for eventType.
func (e *EventEmitter) ListenerCount(eventType EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[eventType])
}

// RemoveAllListeners drops every listener.
func (e *EventEmitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[EventType][]EventListener)
}
