package signal

import "github.com/vivadesk/examrelay/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, cmd protocol.Command) {
	ctl.reply(conn, cmd, protocol.Event{Type: protocol.TypePong})
}
