// Package domain contains entities without transport or lifecycle logic.
package domain

import "errors"

const MaxUserIDLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

// UserID is supplied by the client and survives reconnects.
type UserID string

type User struct {
	ID UserID `json:"id"`
}

// NewUser validates the client-supplied id.
func NewUser(id string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	return &User{ID: UserID(id)}, nil
}
