package orch

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/app"
	"github.com/vivadesk/examrelay/internal/core"
)

// Orchestrator is the single entrypoint transports call into.
type Orchestrator struct {
	Registry *app.Registry
	Relay    *app.Relay
	Policy   app.Policy
}

func New(policy app.Policy) *Orchestrator {
	reg := app.NewRegistry(app.NewRoomManager())
	return &Orchestrator{
		Registry: reg,
		Relay:    app.NewRelay(reg),
		Policy:   policy,
	}
}

// Connect registers a new transport connection.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(sid, conn, cancel)
}

// OnDisconnect is the only cancellation signal: it leaves the room and forgets sid.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	roomID, res, left := o.Registry.Unbind(sid)
	if left {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("disconnected from room")
	}
	o.applyPolicy(res)
}

// applyPolicy runs outside the registry lock so kicks can unbind safely.
func (o *Orchestrator) applyPolicy(res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		roomID, ok := o.Registry.RoomOf(slow)
		if !ok {
			continue
		}
		room, ok := o.roomService(roomID)
		if !ok {
			continue
		}
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow)).Msg("kicking slow member")
			o.Registry.Cancel(slow)
		case app.DropFrame, app.NoAction:
			log.Debug().Str("module", "orch").Str("sid", string(slow)).Msg("frame dropped for slow member")
		}
	}
}
