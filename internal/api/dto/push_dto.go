package dto

// PushKeys are the subscription encryption keys supplied by the client.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeRequest registers a push subscription. The shape mirrors the
// browser PushSubscription JSON.
type SubscribeRequest struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// UnsubscribeRequest removes a subscription by endpoint.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// BroadcastRequest is an admin-triggered notification.
type BroadcastRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// BroadcastResponse summarizes a broadcast.
type BroadcastResponse struct {
	Delivered int `json:"delivered"`
	Pruned    int `json:"pruned"`
	Failed    int `json:"failed"`
}
