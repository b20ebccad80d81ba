package app

import (
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
)

// Presence emits peer-joined / peer-left to the other members of a room.
// The registry calls it while holding its membership lock, so events for a
// room reach each member in the order the joins and leaves happened.
type Presence struct{}

// Joined must be called after actor was added; actor is excluded.
func (Presence) Joined(room core.RoomService, actor core.SessionID, user *domain.User) core.PublishResult {
	res := room.Broadcast(actor, protocol.MustEncode(protocol.PeerJoined(string(user.ID))))
	log.Debug().Str("module", "app.presence").Str("room", string(room.Room().ID)).Str("user", string(user.ID)).Int("notified", res.SendTo).Msg("peer joined")
	return res
}

// Left must be called after actor was removed; only remaining members are notified.
func (Presence) Left(room core.RoomService, actor core.SessionID, user *domain.User) core.PublishResult {
	res := room.Broadcast(actor, protocol.MustEncode(protocol.PeerLeft(string(user.ID))))
	log.Debug().Str("module", "app.presence").Str("room", string(room.Room().ID)).Str("user", string(user.ID)).Int("notified", res.SendTo).Msg("peer left")
	return res
}
