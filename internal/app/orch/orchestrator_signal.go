package orch

import (
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
)

// Signal is fire-and-forget: a foreign room or a slow recipient is never an
// error for the sender.
func (o *Orchestrator) Signal(sid core.SessionID, roomID domain.RoomID, payload []byte) {
	res, ok := o.Relay.Relay(sid, roomID, payload)
	if !ok {
		return
	}
	o.applyPolicy(res)
}
