package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the session leaves
// its room and is forgotten.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, token string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.Orch.OnDisconnect(sid)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleCommand(sid, token, c, data)
		}
	}
}

func (ctl *SignalWSController) handleCommand(sid core.SessionID, token string, c *WsSignalConn, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendEvent(c, protocol.Error("bad_payload"))
		return
	}

	switch cmd.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(sid, token, c, cmd)
	case protocol.TypeSignal:
		ctl.handleSignal(sid, c, cmd)
	case protocol.TypeLeave:
		ctl.handleLeave(sid, c, cmd)
	case protocol.TypePing:
		ctl.handlePing(c, cmd)
	default:
		log.Warn().Str("module", "signal").Str("type", cmd.Type).Msg("unknown command")
		ctl.reply(c, cmd, protocol.Error("unknown_command"))
	}
}

// reply answers cmd on the requesting connection only.
func (ctl *SignalWSController) reply(c core.SignalConnection, cmd protocol.Command, ev protocol.Event) {
	ev.ReplyTo = cmd.ID
	ctl.sendEvent(c, ev)
}

func (ctl *SignalWSController) sendEvent(c core.SignalConnection, ev protocol.Event) {
	b, err := protocol.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEvent marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("type", ev.Type).Msg("reply dropped")
	}
}
