package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking est la réservation d'un appel vidéo entre un utilisateur et un créateur.
type Booking struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	CreatorID       string          `json:"creator_id"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Currency        string          `json:"currency"`
	CallDateTime    time.Time       `json:"call_date_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          BookingStatus   `json:"status"`
	DailyRoomName   *string         `json:"daily_room_name,omitempty"`
	DailyRoomURL    *string         `json:"daily_room_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CallEndsAt retourne l'heure de fin prévue de l'appel.
func (b *Booking) CallEndsAt() time.Time {
	return b.CallDateTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

func (b *Booking) HasRoom() bool {
	return b.DailyRoomURL != nil && *b.DailyRoomURL != ""
}
