package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type capturePublisher struct {
	redis.Cmdable
	channels []string
	messages [][]byte
}

func (p *capturePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message.([]byte))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestNotificationService_FansOutEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	publisher := &capturePublisher{}
	svc := NewNotificationService(dispatcher, publisher, zap.NewNop(), config.NotificationConfig{})
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:       "ev-1",
		Type:     events.EventTicketStatusChanged,
		TicketID: "t-1",
		Actor:    domain.Actor{ID: "agent-1", Role: domain.RoleAgent},
		Payload: events.TicketStatusChangedPayload{
			Event:     "start",
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusInProgress,
		},
	})
	require.NoError(t, err)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, EventsChannel, publisher.channels[0])
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(publisher.messages[0], &decoded))
	assert.Equal(t, "t-1", decoded["ticket_id"])
}

func TestNotificationService_WithoutPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	svc := NewNotificationService(dispatcher, nil, zap.NewNop(), config.NotificationConfig{})
	svc.RegisterHandlers()

	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketDeleted, TicketID: "t-1"}))
}
