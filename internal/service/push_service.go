package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/domain"
	"github.com/spec-kit/party-admin-service/internal/repository"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// ErrSubscriptionGone signals the push service reported the endpoint as
// permanently gone; the subscription must be pruned.
var ErrSubscriptionGone = errors.New("push subscription gone")

// PushDeliverer attempts delivery of one payload to one subscription.
type PushDeliverer interface {
	Deliver(ctx context.Context, sub domain.PushSubscription, payload []byte) error
}

// HTTPPushDeliverer posts payloads to the subscription endpoint.
type HTTPPushDeliverer struct {
	client *http.Client
}

// NewHTTPPushDeliverer builds the deliverer.
func NewHTTPPushDeliverer(client *http.Client) *HTTPPushDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPushDeliverer{client: client}
}

// Deliver posts the payload. HTTP 404/410 means the endpoint is permanently
// gone; other non-2xx statuses are transient failures.
func (d *HTTPPushDeliverer) Deliver(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", "60")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NotificationPayload is the structured push message body.
type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// ParseNotificationPayload decodes a received push body. Non-JSON input
// degrades to a plain-text body under a default title, so a malformed
// message still renders.
func ParseNotificationPayload(data []byte) NotificationPayload {
	var payload NotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Title == "" {
		return NotificationPayload{
			Title: "Notification",
			Body:  string(data),
			URL:   "/",
		}
	}
	if payload.URL == "" {
		payload.URL = "/"
	}
	return payload
}

// BroadcastResult summarizes a broadcast attempt.
type BroadcastResult struct {
	Delivered int
	Pruned    int
	Failed    int
}

// PushService manages the push subscription lifecycle and fire-and-forget
// broadcasts.
type PushService struct {
	subs      repository.PushSubscriptionRepository
	deliverer PushDeliverer
	limiter   *RateLimiter
	logger    *zap.Logger
}

// NewPushService builds the service.
func NewPushService(subs repository.PushSubscriptionRepository, deliverer PushDeliverer, limiter *RateLimiter, logger *zap.Logger) *PushService {
	return &PushService{subs: subs, deliverer: deliverer, limiter: limiter, logger: logger}
}

// Subscribe upserts a subscription keyed by endpoint. Idempotent.
func (s *PushService) Subscribe(ctx context.Context, endpoint, p256dh, authKey string) (*domain.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || authKey == "" {
		return nil, apperrors.NewValidationError("endpoint and keys are required", nil)
	}

	sub := &domain.PushSubscription{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     authKey,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return sub, nil
}

// Unsubscribe removes a subscription by endpoint.
func (s *PushService) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return apperrors.NewValidationError("endpoint is required", nil)
	}
	if err := s.subs.DeleteByEndpoint(ctx, endpoint); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Broadcast delivers a notification to every stored subscription. One
// subscriber's failure never aborts the others: permanently-gone endpoints
// are pruned, transient failures are logged and left for the next broadcast.
func (s *PushService) Broadcast(ctx context.Context, channelKey, title, body, url string) (*BroadcastResult, error) {
	if s.limiter != nil && !s.limiter.Allow(channelKey) {
		return nil, apperrors.NewRateLimited("push rate limit exceeded")
	}

	payload, err := json.Marshal(NotificationPayload{
		Title: title,
		Body:  body,
		URL:   url,
		Icon:  "/icons/icon-192.png",
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	subscriptions, err := s.subs.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	result := &BroadcastResult{}
	for _, sub := range subscriptions {
		err := s.deliverer.Deliver(ctx, sub, payload)
		switch {
		case err == nil:
			result.Delivered++
		case errors.Is(err, ErrSubscriptionGone):
			if delErr := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); delErr != nil {
				s.logger.Error("failed to prune push subscription", zap.Error(delErr), zap.String("endpoint", sub.Endpoint))
			}
			result.Pruned++
		default:
			s.logger.Warn("push delivery failed", zap.Error(err), zap.String("endpoint", sub.Endpoint))
			result.Failed++
		}
	}
	return result, nil
}
