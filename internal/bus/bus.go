// Package bus provides an internal event bus for component communication.
package bus

import (
	"sync"
)

// EventType identifies different event types.
type EventType string

// Event types emitted toward the host application.
const (
	// Transcription events
	EventTypeTranscript EventType = "transcript"
	EventTypeWakeWord   EventType = "wake-word"

	// Conversation events
	EventTypeStateChange EventType = "state-change"

	// Synthesis events
	EventTypeSpeakingStart EventType = "speaking-start"
	EventTypeSpeakComplete EventType = "speak-complete"
	EventTypeAudioChunk    EventType = "audio-chunk"
	EventTypeAudioComplete EventType = "audio-complete"

	// Failures surfaced without stopping the pipeline
	EventTypeError EventType = "error"
)

// Event represents a bus event.
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// EventBus is a simple pub/sub event bus.
//
// Publish dispatches asynchronously and makes no ordering promise across
// events. PublishSync dispatches on the caller's goroutine, so successive
// PublishSync calls from one goroutine are observed in call order; the
// transcription path relies on that.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type.
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// Publish sends an event to all subscribed handlers without blocking.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete.
// Handlers run sequentially on the calling goroutine, preserving the
// order in which the caller publishes.
func (b *EventBus) PublishSync(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		handler(event)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}
