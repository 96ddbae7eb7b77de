package persistence

import "time"

// SessionRecord is the locally stored login of the desk operator.
// The bearer token is stored sealed; the profile fields are kept in the clear
// so a caller can show who is logged in without the secret.
type SessionRecord struct {
	ID          string
	UserID      string
	Username    string
	Email       string
	Department  string
	Role        string
	SealedToken []byte
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}
