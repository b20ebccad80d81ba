package orch

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
)

func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, user *domain.User) error {
	res, err := o.Registry.Join(sid, roomID, user)
	if err != nil {
		return err
	}
	o.applyPolicy(res)
	return nil
}

// Leave is idempotent; it reports whether sid was in a room.
func (o *Orchestrator) Leave(sid core.SessionID) bool {
	_, res, left := o.Registry.Leave(sid)
	o.applyPolicy(res)
	return left
}

func (o *Orchestrator) Members(roomID domain.RoomID) []core.MemberDTO {
	return o.Registry.Members(roomID)
}

func (o *Orchestrator) Rooms() []core.RoomInfo {
	return o.Registry.Rooms()
}

func (o *Orchestrator) roomService(roomID domain.RoomID) (core.RoomService, bool) {
	return o.Registry.Room(roomID)
}

// Stats returns the number of live rooms and connected members across them.
func (o *Orchestrator) Stats() (rooms, members int) {
	infos := o.Registry.Rooms()
	return len(infos), lo.SumBy(infos, func(r core.RoomInfo) int { return r.MemberCount })
}

// LogStats is run periodically by the server.
func (o *Orchestrator) LogStats() {
	rooms, members := o.Stats()
	log.Info().Str("module", "orch").Int("rooms", rooms).Int("members", members).Msg("room stats")
}
