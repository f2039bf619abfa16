package models

import "time"

type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "BOOKING_CONFIRMED"
	NotificationNewBooking       NotificationType = "NEW_BOOKING"
	NotificationPayoutCompleted  NotificationType = "PAYOUT_COMPLETED"
	NotificationPayoutReversed   NotificationType = "PAYOUT_REVERSED"
	NotificationPayoutRejected   NotificationType = "PAYOUT_REJECTED"
	NotificationPayoutFailed     NotificationType = "PAYOUT_FAILED"
	NotificationPayoutsBlocked   NotificationType = "PAYOUTS_BLOCKED"
	NotificationPayoutsUnblocked NotificationType = "PAYOUTS_UNBLOCKED"
	NotificationSystem           NotificationType = "SYSTEM"
)

// Notification est une notification in-app affichée dans le tableau de bord.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
