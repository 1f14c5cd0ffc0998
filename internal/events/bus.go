package events

import (
	"sync"
	"time"

	"github.com/matt0x6f/ircsession/internal/model"
)

// EventSource represents the source of an event
type EventSource string

const (
	EventSourceIRC    EventSource = "irc"
	EventSourceUser   EventSource = "user"
	EventSourceSystem EventSource = "system"
)

// UI event types, one per part of the projection that can change
const (
	EventUIServers   = "ui.servers"
	EventUIChannels  = "ui.channels"
	EventUIMessages  = "ui.messages"
	EventUIUsers     = "ui.users"
	EventUITopic     = "ui.topic"
	EventUIDirectory = "ui.directory"
	EventUIActive    = "ui.active"
)

// Event tells subscribers which part of the client state changed. Message
// is set for newly appended messages; an empty ChannelID then means the
// server status buffer.
type Event struct {
	Type       string
	ServerID   string
	ServerName string
	ChannelID  string
	Message    *model.Message
	Timestamp  time.Time
	Source     EventSource
}

// Subscriber is an interface for event subscribers
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(event Event) {
	f(event)
}

// EventBus manages event routing
type EventBus struct {
	subscribers map[string][]*subscription
	mu          sync.RWMutex
}

type subscription struct {
	sub Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]*subscription),
	}
}

// Subscribe subscribes a subscriber to a specific event type ("*" for all).
// The returned function removes the subscription.
func (eb *EventBus) Subscribe(eventType string, subscriber Subscriber) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	s := &subscription{sub: subscriber}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], s)
	return func() { eb.unsubscribe(eventType, s) }
}

func (eb *EventBus) unsubscribe(eventType string, s *subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == s {
			eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (eb *EventBus) targets(eventType string) []Subscriber {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	out := make([]Subscriber, 0, len(eb.subscribers[eventType])+len(eb.subscribers["*"]))
	for _, s := range eb.subscribers[eventType] {
		out = append(out, s.sub)
	}
	for _, s := range eb.subscribers["*"] {
		out = append(out, s.sub)
	}
	return out
}

// EmitSync emits an event synchronously, preserving emission order
func (eb *EventBus) EmitSync(event Event) {
	for _, sub := range eb.targets(event.Type) {
		sub.OnEvent(event)
	}
}
