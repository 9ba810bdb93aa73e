package models

const (
	DefaultPayloadTitle = "Unnamed location"
	DefaultPayloadBody  = "new marker added"
)

// Payload is the notification document delivered to push endpoints.
// The data block lets the client route on notification click.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon"`
	Badge string      `json:"badge"`
	Data  PayloadData `json:"data"`
}

type PayloadData struct {
	URL      string `json:"url"`
	MarkerID string `json:"markerId"`
	SentAt   string `json:"sentAt"`
}
