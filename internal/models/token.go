package models

import "time"

type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
)

// Token is a short-lived single-use code. It is deleted the moment it is
// successfully consumed and is unusable past its expiry.
type Token struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
