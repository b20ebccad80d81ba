// Package relayclient speaks the signaling protocol from the participant side.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrClosed        = errors.New("relay connection closed")
	ErrAlreadyInRoom = errors.New("already in another room")
	ErrNotInRoom     = errors.New("not in a room")
)

// RejectedError carries an error event returned by the relay.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "relay rejected: " + e.Reason }

// Client manages one WebSocket connection to the relay. Room events
// (peer-joined, peer-left, signal) are delivered on Events; replies to the
// client's own commands are consumed internally.
type Client struct {
	conn     *websocket.Conn
	events   chan protocol.Event
	acks     chan protocol.Event
	outgoing chan protocol.Command
	done     chan struct{}

	// serializes request/reply commands
	reqMu sync.Mutex

	mu        sync.Mutex
	seq       uint64
	sid       string
	room      domain.RoomID
	closeOnce sync.Once
}

// Dial connects to the relay WebSocket endpoint, e.g. ws://host:5000/api/ws/signal.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c := &Client{
		conn:     conn,
		events:   make(chan protocol.Event, 64),
		acks:     make(chan protocol.Event, 4),
		outgoing: make(chan protocol.Command, 16),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "relayclient").Msg("bad event")
			continue
		}
		switch ev.Type {
		case protocol.TypeJoined, protocol.TypeLeft, protocol.TypeError, protocol.TypePong:
			c.track(ev)
			select {
			case c.acks <- ev:
			default:
				log.Debug().Str("module", "relayclient").Str("type", ev.Type).Msg("unsolicited reply dropped")
			}
		default:
			select {
			case c.events <- ev:
			default:
				log.Warn().Str("module", "relayclient").Str("type", ev.Type).Msg("event dropped, consumer too slow")
			}
		}
	}
}

// track mirrors the relay's view of our membership, including replies to
// requests that were abandoned before their reply arrived.
func (c *Client) track(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case protocol.TypeJoined:
		c.sid, c.room = ev.SID, domain.RoomID(ev.Room)
	case protocol.TypeLeft:
		c.room = ""
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case cmd := <-c.outgoing:
			data, err := protocol.Encode(cmd)
			if err != nil {
				log.Warn().Err(err).Str("module", "relayclient").Msg("encode command")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Events is closed when the connection ends.
func (c *Client) Events() <-chan protocol.Event { return c.events }

// SID is the connection id the relay assigned on the last successful join.
func (c *Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

func (c *Client) Room() (domain.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.room != ""
}

func (c *Client) send(ctx context.Context, cmd protocol.Command) error {
	select {
	case c.outgoing <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) request(ctx context.Context, cmd protocol.Command, want string) (protocol.Event, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drainAcks()
	c.mu.Lock()
	c.seq++
	cmd.ID = strconv.FormatUint(c.seq, 10)
	c.mu.Unlock()

	if err := c.send(ctx, cmd); err != nil {
		return protocol.Event{}, err
	}
	for {
		select {
		case ev := <-c.acks:
			if ev.ReplyTo != cmd.ID {
				log.Debug().Str("module", "relayclient").Str("type", ev.Type).Str("reply_to", ev.ReplyTo).Msg("stale reply skipped")
				continue
			}
			switch ev.Type {
			case want:
				return ev, nil
			case protocol.TypeError:
				if ev.Error == "already_in_room" {
					return ev, ErrAlreadyInRoom
				}
				return ev, &RejectedError{Reason: ev.Error}
			}
		case <-c.done:
			return protocol.Event{}, ErrClosed
		case <-ctx.Done():
			return protocol.Event{}, ctx.Err()
		}
	}
}

func (c *Client) drainAcks() {
	for {
		select {
		case <-c.acks:
		default:
			return
		}
	}
}

// JoinRoom joins room as user and waits for the relay to confirm.
func (c *Client) JoinRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	ev, err := c.request(ctx, protocol.Command{Type: protocol.TypeJoinRoom, Room: string(room), UserID: string(user)}, protocol.TypeJoined)
	if err != nil {
		return err
	}
	log.Info().Str("module", "relayclient").Str("room", string(room)).Str("sid", ev.SID).Msg("joined")
	return nil
}

func (c *Client) LeaveRoom(ctx context.Context) error {
	_, err := c.request(ctx, protocol.Command{Type: protocol.TypeLeave}, protocol.TypeLeft)
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, protocol.Command{Type: protocol.TypePing}, protocol.TypePong)
	return err
}

// Signal sends payload to the other members of the current room. There is no
// delivery confirmation.
func (c *Client) Signal(ctx context.Context, payload []byte) error {
	room, ok := c.Room()
	if !ok {
		return ErrNotInRoom
	}
	return c.send(ctx, protocol.Command{Type: protocol.TypeSignal, Room: string(room), Payload: payload})
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
