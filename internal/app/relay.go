package app

import (
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
)

// Relay forwards opaque negotiation payloads to every other member of the
// sender's room. There is no target addressing: with more than two peers
// every signal reaches every other peer, which suits mesh topologies only.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Relay delivers payload from sender to the rest of roomID. A sender that is
// not currently in roomID is ignored (ok=false); it may hold a stale view.
func (rl *Relay) Relay(sender core.SessionID, roomID domain.RoomID, payload []byte) (res core.PublishResult, ok bool) {
	frame, err := protocol.Encode(protocol.Signal(string(sender), payload))
	if err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sender)).Msg("signal payload not encodable")
		return res, false
	}
	ok = rl.registry.withSharedRoom(sender, roomID, func(room core.RoomService) {
		res = room.Broadcast(sender, frame)
	})
	if !ok {
		log.Debug().Str("module", "app.relay").Str("sid", string(sender)).Str("room", string(roomID)).Msg("signal for foreign room ignored")
	}
	return res, ok
}
