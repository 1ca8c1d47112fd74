package interfaces

import "context"

// EventType identifies a class of in-process events
type EventType string

const (
	EventJobSubmitted     EventType = "job_submitted"
	EventWorkerTransition EventType = "worker_transition"
	EventWorkerProgress   EventType = "worker_progress"
	EventJobTerminal      EventType = "job_terminal"
)

// Event is a typed in-process event with an arbitrary payload
type Event struct {
	Type    EventType
	Payload map[string]interface{}
}

// EventHandler processes one published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub hub decoupling the coordinator
// from WebSocket broadcasting and other observers
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
}
