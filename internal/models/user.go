package models

import "time"

const (
	RoleAdmin   = "ADMIN"
	RoleCreator = "CREATOR"
	RoleUser    = "USER"
)

type User struct {
	ID    string `json:"user_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Creator est le profil vendeur d'un utilisateur, relié à un compte Stripe Connect.
type Creator struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	StripeAccountID   *string    `json:"stripe_account_id,omitempty"`
	PayoutBlocked     bool       `json:"payout_blocked"`
	PayoutBlockReason *string    `json:"payout_block_reason,omitempty"`
	PayoutBlockedAt   *time.Time `json:"payout_blocked_at,omitempty"`
}

// HasConnectedAccount indique si le créateur peut recevoir un transfert.
func (c *Creator) HasConnectedAccount() bool {
	return c.StripeAccountID != nil && *c.StripeAccountID != ""
}
