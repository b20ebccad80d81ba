package app

import "github.com/vivadesk/examrelay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose outbound queue rejected a frame.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

// DropPolicy silently drops the frame for the slow member only.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return DropFrame
}

// KickPolicy disconnects members that cannot keep up.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return KickMember
}

// PolicyByName maps the config value to a Policy. Unknown names fall back to drop.
func PolicyByName(name string) Policy {
	switch name {
	case "kick":
		return KickPolicy{}
	default:
		return DropPolicy{}
	}
}
