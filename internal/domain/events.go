package domain

import "time"

// Event is a real-time notification frame pushed to a connected client.
// Immutable once enqueued; delivery is best-effort.
type Event struct {
	Kind       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	ProducedAt time.Time      `json:"timestamp"`
}

func NewEvent(kind string, payload map[string]any) Event {
	return Event{Kind: kind, Payload: payload, ProducedAt: time.Now().UTC()}
}
