package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string

	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("smtp down")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventCommentAdded, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}
