package protocol

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

var ErrUnknownPayload = errors.New("payload is neither a session description nor a candidate")

// Negotiation is the payload shape browsers and pion clients put inside a
// signal message. The relay never decodes it; clients do.
type Negotiation struct {
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

func OfferPayload(sdp string) ([]byte, error) {
	return Encode(Negotiation{Description: &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}})
}

func AnswerPayload(sdp string) ([]byte, error) {
	return Encode(Negotiation{Description: &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}})
}

func CandidatePayload(c webrtc.ICECandidateInit) ([]byte, error) {
	return Encode(Negotiation{Candidate: &c})
}

// ParseNegotiation is the client-side decoder for a relayed payload.
func ParseNegotiation(payload []byte) (Negotiation, error) {
	var n Negotiation
	if err := json.Unmarshal(payload, &n); err != nil {
		return n, err
	}
	if n.Description == nil && n.Candidate == nil {
		return n, ErrUnknownPayload
	}
	return n, nil
}
