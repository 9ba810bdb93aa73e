package models

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// WebPushEndpoint is the subscription object produced by the browser's
// PushManager; only endpoint presence is validated.
type WebPushEndpoint struct {
	Endpoint       string   `json:"endpoint"`
	ExpirationTime *float64 `json:"expirationTime,omitempty"`
	Keys           PushKeys `json:"keys"`
}

type Subscription struct {
	ID           string           `json:"id"`
	Subscription *WebPushEndpoint `json:"subscription"`
	UserID       string           `json:"userId,omitempty"`
	CreatedAt    string           `json:"createdAt,omitempty"`
}

type Subscriptions map[string]*Subscription

func (s *Subscription) Validate() error {
	if s.Subscription == nil || s.Subscription.Endpoint == "" {
		return &ValidationError{Field: "subscription", Reason: "endpoint is required"}
	}
	return nil
}
