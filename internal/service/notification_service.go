package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// EventsChannel is the Redis channel ticket events are fanned out on.
const EventsChannel = "helpdesk:events"

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  redis.Cmdable
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. publisher may be nil, in which
// case events are only logged.
func NewNotificationService(dispatcher events.Dispatcher, publisher redis.Cmdable, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
	n.dispatcher.Subscribe(events.EventCommentDeleted, n.handleCommentDeleted)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleTicketDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDeleted", zap.String("ticket_id", event.TicketID))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("CommentAdded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if p, ok := event.Payload.(events.CommentPayload); ok && !p.Internal {
		n.sendEmailNotificationStub(ctx, event)
	}
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleCommentDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("CommentDeleted", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) fanOut(ctx context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, EventsChannel, body).Err()
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
