package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matt0x6f/ircsession/internal/model"
)

func TestEmitSyncPreservesOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string
	bus.Subscribe(EventUIMessages, SubscriberFunc(func(e Event) {
		got = append(got, e.Message.Text)
	}))

	for _, text := range []string{"one", "two", "three"} {
		bus.EmitSync(Event{Type: EventUIMessages, Message: &model.Message{Text: text}})
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestWildcardAndTypeFiltering(t *testing.T) {
	bus := NewEventBus()
	var all, users []string
	bus.Subscribe("*", SubscriberFunc(func(e Event) { all = append(all, e.Type) }))
	bus.Subscribe(EventUIUsers, SubscriberFunc(func(e Event) { users = append(users, e.Type) }))

	bus.EmitSync(Event{Type: EventUITopic})
	bus.EmitSync(Event{Type: EventUIUsers})

	assert.Equal(t, []string{EventUITopic, EventUIUsers}, all)
	assert.Equal(t, []string{EventUIUsers}, users)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	count := 0
	cancel := bus.Subscribe(EventUIActive, SubscriberFunc(func(Event) { count++ }))
	bus.EmitSync(Event{Type: EventUIActive})
	cancel()
	bus.EmitSync(Event{Type: EventUIActive})
	assert.Equal(t, 1, count)
}
