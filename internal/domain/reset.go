package domain

import "time"

// ResetTicket pairs the hash of a one-time password reset secret with its expiry.
type ResetTicket struct {
	ID         string
	AccountID  string
	SecretHash string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// ExpiredAt reports whether the ticket is no longer usable at the given instant.
func (t *ResetTicket) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
