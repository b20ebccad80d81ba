package viva

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/adapters/rtc"
	"github.com/vivadesk/examrelay/internal/protocol"
)

// Sender pushes a payload to the other members of the room.
type Sender interface {
	Signal(ctx context.Context, payload []byte) error
}

// Call negotiates the media link with the single remote participant of a
// two-party room. The side already in the room offers when the other joins.
type Call struct {
	cfg    webrtc.Configuration
	out    Sender
	stream *rtc.Stream
	name   string

	mu   sync.Mutex
	peer *rtc.Peer
}

func NewCall(cfg webrtc.Configuration, out Sender, stream *rtc.Stream, name string) *Call {
	return &Call{cfg: cfg, out: out, stream: stream, name: name}
}

// Run consumes room events until ctx ends or events is closed.
func (c *Call) Run(ctx context.Context, events <-chan protocol.Event) {
	defer c.hangUp()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Call) handle(ctx context.Context, ev protocol.Event) {
	switch ev.Type {
	case protocol.TypePeerJoined:
		p, err := c.resetPeer(ctx)
		if err != nil {
			log.Error().Err(err).Str("module", "viva.call").Msg("new peer")
			return
		}
		offer, err := p.Offer()
		if err != nil {
			log.Error().Err(err).Str("module", "viva.call").Msg("create offer")
			return
		}
		c.send(ctx, offer)
	case protocol.TypeSignal:
		p, err := c.currentPeer(ctx)
		if err != nil {
			log.Error().Err(err).Str("module", "viva.call").Msg("new peer")
			return
		}
		reply, err := p.HandleSignal(ev.Payload)
		if err != nil {
			log.Warn().Err(err).Str("module", "viva.call").Str("sender", ev.Sender).Msg("bad negotiation payload")
			return
		}
		if reply != nil {
			c.send(ctx, reply)
		}
	case protocol.TypePeerLeft:
		log.Info().Str("module", "viva.call").Str("user", ev.UserID).Msg("remote left")
		c.hangUp()
	}
}

func (c *Call) send(ctx context.Context, payload []byte) {
	if err := c.out.Signal(ctx, payload); err != nil {
		log.Warn().Err(err).Str("module", "viva.call").Msg("signal")
	}
}

func (c *Call) newPeerLocked(ctx context.Context) (*rtc.Peer, error) {
	p, err := rtc.NewPeer(c.cfg, c.name)
	if err != nil {
		return nil, err
	}
	p.OnSignal(func(payload []byte) { c.send(ctx, payload) })
	p.Start(ctx)
	if c.stream != nil {
		if err := p.AttachStream(c.stream); err != nil {
			p.Close()
			return nil, err
		}
	}
	c.peer = p
	return p, nil
}

func (c *Call) resetPeer(ctx context.Context) (*rtc.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer != nil {
		c.peer.Close()
		c.peer = nil
	}
	return c.newPeerLocked(ctx)
}

func (c *Call) currentPeer(ctx context.Context) (*rtc.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer != nil {
		return c.peer, nil
	}
	return c.newPeerLocked(ctx)
}

// Peer is the current media link, nil before negotiation starts.
func (c *Call) Peer() *rtc.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

func (c *Call) hangUp() {
	c.mu.Lock()
	p := c.peer
	c.peer = nil
	c.mu.Unlock()
	if p != nil {
		p.Close()
	}
}
