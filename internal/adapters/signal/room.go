package signal

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/app"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, token string, conn *WsSignalConn, cmd protocol.Command) {
	roomID, err := domain.ParseRoomID(cmd.Room)
	if err != nil {
		ctl.reply(conn, cmd, protocol.Error(err.Error()))
		return
	}
	uid := cmd.UserID
	if uid == "" {
		uid = token
	}
	user, err := domain.NewUser(uid)
	if err != nil {
		ctl.reply(conn, cmd, protocol.Error(err.Error()))
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", uid).Msg("join")
	if err := ctl.Orch.Join(sid, roomID, user); err != nil {
		msg := "join_failed"
		if errors.Is(err, app.ErrAlreadyInRoom) {
			msg = "already_in_room"
		}
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.reply(conn, cmd, protocol.Error(msg))
		return
	}
	ctl.reply(conn, cmd, protocol.Event{Type: protocol.TypeJoined, Room: string(roomID), SID: string(sid)})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *WsSignalConn, cmd protocol.Command) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
	ctl.reply(conn, cmd, protocol.Event{Type: protocol.TypeLeft})
}

// handleSignal never reports delivery problems back to the sender.
func (ctl *SignalWSController) handleSignal(sid core.SessionID, conn *WsSignalConn, cmd protocol.Command) {
	roomID := domain.RoomID(cmd.Room)
	if roomID == "" {
		current, ok := ctl.Orch.Registry.RoomOf(sid)
		if !ok {
			ctl.reply(conn, cmd, protocol.Error("not_in_room"))
			return
		}
		roomID = current
	}
	ctl.Orch.Signal(sid, roomID, cmd.Payload)
}
