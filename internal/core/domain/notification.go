package domain

import "time"

// NotificationPriority orders notifications for the client.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is one message the application wants delivered to every
// subscribed device.
type Notification struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Priority   NotificationPriority `json:"priority"`
	Source     string               `json:"source"`
	Timestamp  time.Time            `json:"timestamp"`
	DeadlineID string               `json:"deadline_id,omitempty"`
	Actions    []string             `json:"actions,omitempty"`
	URL        string               `json:"url,omitempty"`
}
