package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/domain"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// scriptedDeliverer returns a per-endpoint error and records payloads.
type scriptedDeliverer struct {
	errs     map[string]error
	payloads [][]byte
}

func (d *scriptedDeliverer) Deliver(_ context.Context, sub domain.PushSubscription, payload []byte) error {
	d.payloads = append(d.payloads, payload)
	return d.errs[sub.Endpoint]
}

func newPushFixture(t *testing.T, deliverer PushDeliverer, limiter *RateLimiter) (*PushService, *fakeSubsRepo) {
	t.Helper()
	subs := newFakeSubsRepo()
	return NewPushService(subs, deliverer, limiter, zap.NewNop()), subs
}

func TestSubscribeIsIdempotentPerEndpoint(t *testing.T) {
	svc, subs := newPushFixture(t, &scriptedDeliverer{}, nil)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "https://push.example/ep1", "key", "auth")
	require.NoError(t, err)
	second, err := svc.Subscribe(ctx, "https://push.example/ep1", "key2", "auth2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored, err := subs.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "key2", stored[0].P256dh)
}

func TestSubscribeValidation(t *testing.T) {
	svc, _ := newPushFixture(t, &scriptedDeliverer{}, nil)

	_, err := svc.Subscribe(context.Background(), "", "key", "auth")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestBroadcastPrunesGoneAndKeepsTransientFailures(t *testing.T) {
	deliverer := &scriptedDeliverer{errs: map[string]error{
		"https://push.example/gone":  ErrSubscriptionGone,
		"https://push.example/flaky": errors.New("upstream 500"),
	}}
	svc, subs := newPushFixture(t, deliverer, nil)
	ctx := context.Background()

	for _, endpoint := range []string{
		"https://push.example/ok",
		"https://push.example/gone",
		"https://push.example/flaky",
	} {
		_, err := svc.Subscribe(ctx, endpoint, "key", "auth")
		require.NoError(t, err)
	}

	result, err := svc.Broadcast(ctx, "test-channel", "Title", "Body", "/target")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Pruned)
	assert.Equal(t, 1, result.Failed)

	remaining, err := subs.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, sub := range remaining {
		assert.NotEqual(t, "https://push.example/gone", sub.Endpoint)
	}
}

func TestBroadcastPayloadShape(t *testing.T) {
	deliverer := &scriptedDeliverer{}
	svc, _ := newPushFixture(t, deliverer, nil)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "https://push.example/ep1", "key", "auth")
	require.NoError(t, err)

	_, err = svc.Broadcast(ctx, "test-channel", "Title", "Body", "/target")
	require.NoError(t, err)

	require.Len(t, deliverer.payloads, 1)
	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(deliverer.payloads[0], &payload))
	assert.Equal(t, "Title", payload.Title)
	assert.Equal(t, "Body", payload.Body)
	assert.Equal(t, "/target", payload.URL)
	assert.NotEmpty(t, payload.Icon)
}

func TestParseNotificationPayloadDegradesToPlainText(t *testing.T) {
	payload := ParseNotificationPayload([]byte(`{"title":"Hi","body":"there","url":"/x"}`))
	assert.Equal(t, "Hi", payload.Title)
	assert.Equal(t, "/x", payload.URL)

	degraded := ParseNotificationPayload([]byte("plain words"))
	assert.Equal(t, "Notification", degraded.Title)
	assert.Equal(t, "plain words", degraded.Body)
	assert.Equal(t, "/", degraded.URL)
}

func TestBroadcastRateLimited(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	svc, _ := newPushFixture(t, &scriptedDeliverer{}, limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Broadcast(ctx, "busy", "Title", "Body", "/")
		require.NoError(t, err)
	}

	_, err := svc.Broadcast(ctx, "busy", "Title", "Body", "/")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 429, domainErr.HTTPStatus)

	// Other channels keep their own budget.
	_, err = svc.Broadcast(ctx, "quiet", "Title", "Body", "/")
	require.NoError(t, err)
}
