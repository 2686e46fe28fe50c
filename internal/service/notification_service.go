package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/events"
)

// NotificationService pushes notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	push       *PushService
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, push *PushService, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		push:       push,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventUserCreated, n.handleUserMutated)
	n.dispatcher.Subscribe(events.EventUserUpdated, n.handleUserMutated)
	n.dispatcher.Subscribe(events.EventUserDeleted, n.handleUserMutated)
	n.dispatcher.Subscribe(events.EventCacheActivated, n.handleCacheActivated)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleUserMutated(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("user_id", event.UserID), zap.String("actor", event.Actor))
	n.broadcast(ctx, "admin-events",
		"User administration",
		fmt.Sprintf("account %s: %s", event.UserID, event.Type),
		"/admin.html")
	return nil
}

func (n *NotificationService) handleCacheActivated(ctx context.Context, event events.Event) error {
	n.logger.Info("CacheActivated", zap.Any("payload", event.Payload))
	n.broadcast(ctx, "system-events",
		"Update installed",
		"a new application version is active",
		"/")
	return nil
}

func (n *NotificationService) broadcast(ctx context.Context, channel, title, body, url string) {
	if n.push == nil {
		return
	}
	if _, err := n.push.Broadcast(ctx, channel, title, body, url); err != nil {
		n.logger.Warn("event broadcast failed", zap.Error(err), zap.String("channel", channel))
	}
}
