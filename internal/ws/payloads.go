package ws

import "time"

// Message is every frame the server writes.
type Message struct {
	Type    string    `json:"type"`
	Kind    string    `json:"kind,omitempty"` // notification kind, e.g. cashback.earned
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// client → server
type InboundMessage struct {
	Type string `json:"type"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
