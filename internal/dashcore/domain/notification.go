package domain

import (
	"fmt"
	"time"
)

// NotificationType is the closed set of alert categories.
type NotificationType string

const (
	NotificationOrder      NotificationType = "order"
	NotificationSystem     NotificationType = "system"
	NotificationInventory  NotificationType = "inventory"
	NotificationCustomer   NotificationType = "customer"
	NotificationFollowUp   NotificationType = "follow_up"
	NotificationNewInquiry NotificationType = "new_inquiry"
)

// ParseNotificationType maps a remote type string into the closed enum.
// Matching is exact; anything else, including a differently cased name,
// folds to NotificationSystem.
func ParseNotificationType(raw string) NotificationType {
	switch t := NotificationType(raw); t {
	case NotificationOrder,
		NotificationSystem,
		NotificationInventory,
		NotificationCustomer,
		NotificationFollowUp,
		NotificationNewInquiry:
		return t
	default:
		return NotificationSystem
	}
}

// Notification is an alert shown in the dashboard bell.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`

	// Timestamp is the relative label computed at sync time, e.g. "5m ago".
	Timestamp string `json:"timestamp"`
}

// RelativeLabel renders the age of created relative to now using fixed
// buckets: under a minute "Just now", under an hour "{m}m ago", under a day
// "{h}h ago", otherwise "{d}d ago". Future instants count as "Just now".
func RelativeLabel(created, now time.Time) string {
	age := now.Sub(created)
	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(age/(24*time.Hour)))
	}
}

// CountUnread returns how many notifications are unread.
func CountUnread(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
