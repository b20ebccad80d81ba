package core

import "github.com/vivadesk/examrelay/internal/domain"

// SessionID identifies one transport connection. It is ephemeral.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}
