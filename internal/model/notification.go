package model

// Notification is pushed to connected clients over the notification socket.
type Notification struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}
