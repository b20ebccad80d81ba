package session

import (
	"context"

	"github.com/vivadesk/examrelay/internal/domain"
)

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

type Constraints struct {
	Audio bool
	Video bool
}

// StreamHandle is an acquired local capture. Only the Capture that produced
// it knows what is behind it.
type StreamHandle interface {
	ID() string
}

// Capture is the platform media capability.
type Capture interface {
	Acquire(ctx context.Context, c Constraints) (StreamHandle, error)
	Release(h StreamHandle) error
	SetTrackEnabled(h StreamHandle, kind TrackKind, enabled bool) error
}

// RoomSignaler joins and leaves the signaling room of the session.
type RoomSignaler interface {
	JoinRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error
	LeaveRoom(ctx context.Context) error
}
