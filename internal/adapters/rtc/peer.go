package rtc

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/protocol"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Peer is the client side of one media link. Its negotiation messages travel
// as opaque payloads through the signal relay.
type Peer struct {
	pc     *webrtc.PeerConnection
	name   string
	cancel context.CancelFunc

	onSignal func(payload []byte)
	onTrack  func(ctx context.Context, track *webrtc.TrackRemote)
	onClosed func()
}

func NewPeer(cfg webrtc.Configuration, name string) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Peer{pc: pc, name: name}, nil
}

// OnSignal receives every payload the peer wants delivered to the remote side.
func (p *Peer) OnSignal(fn func(payload []byte)) { p.onSignal = fn }

func (p *Peer) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote)) { p.onTrack = fn }

func (p *Peer) OnClosed(fn func()) { p.onClosed = fn }

func (p *Peer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc.peer").Str("peer", p.name).Str("state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
			if p.onClosed != nil {
				p.onClosed()
			}
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || p.onSignal == nil {
			return
		}
		payload, err := protocol.CandidatePayload(cand.ToJSON())
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc.peer").Str("peer", p.name).Msg("encode candidate")
			return
		}
		p.onSignal(payload)
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc.peer").
			Str("peer", p.name).
			Str("kind", track.Kind().String()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if p.onTrack != nil {
			p.onTrack(ctx, track)
		}
	})
}

// AttachStream publishes the local capture on this link.
func (p *Peer) AttachStream(s *Stream) error {
	_, err := s.Attach(p.pc)
	return err
}

// Offer creates the local offer and returns it as a relay payload.
func (p *Peer) Offer() ([]byte, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return protocol.OfferPayload(offer.SDP)
}

// HandleSignal applies a payload from the remote side. An offer yields the
// answer payload to send back; everything else yields nil.
func (p *Peer) HandleSignal(payload []byte) ([]byte, error) {
	n, err := protocol.ParseNegotiation(payload)
	if err != nil {
		return nil, err
	}
	if n.Candidate != nil {
		return nil, p.pc.AddICECandidate(*n.Candidate)
	}
	if err := p.pc.SetRemoteDescription(*n.Description); err != nil {
		return nil, fmt.Errorf("remote description: %w", err)
	}
	if n.Description.Type != webrtc.SDPTypeOffer {
		return nil, nil
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return protocol.AnswerPayload(answer.SDP)
}

func (p *Peer) SignalingState() webrtc.SignalingState { return p.pc.SignalingState() }

// Negotiated reports a completed offer/answer exchange.
func (p *Peer) Negotiated() bool {
	return p.pc.RemoteDescription() != nil && p.pc.SignalingState() == webrtc.SignalingStateStable
}

func (p *Peer) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc.peer").Str("peer", p.name).Msg("close error")
		return
	}
	log.Info().Str("module", "rtc.peer").Str("peer", p.name).Msg("closed")
}
