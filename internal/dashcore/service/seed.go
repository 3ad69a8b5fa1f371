package service

import (
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/pkg/idx"
)

// SeedNotifications returns the static list shown while nobody is signed in.
// Ids are fresh ULIDs and ages are relative to now.
func SeedNotifications(now time.Time) []domain.Notification {
	seed := []struct {
		title, message string
		typ            domain.NotificationType
		age            time.Duration
		read           bool
	}{
		{"Welcome", "Sign in to see your notifications.", domain.NotificationSystem, 0, false},
		{"New inquiry", "Inquiries from the website land here.", domain.NotificationNewInquiry, 5 * time.Minute, false},
		{"Follow-up due", "Scheduled lead follow-ups are listed here.", domain.NotificationFollowUp, 2 * time.Hour, true},
		{"Low stock", "Inventory alerts appear when stock runs low.", domain.NotificationInventory, 26 * time.Hour, true},
	}

	out := make([]domain.Notification, 0, len(seed))
	for _, s := range seed {
		created := now.Add(-s.age)
		out = append(out, domain.Notification{
			ID:        idx.NewAt(created).String(),
			Title:     s.title,
			Message:   s.message,
			Type:      s.typ,
			Read:      s.read,
			CreatedAt: created,
			Timestamp: domain.RelativeLabel(created, now),
		})
	}
	return out
}
