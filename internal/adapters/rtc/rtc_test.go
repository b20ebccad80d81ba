package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
	"github.com/vivadesk/examrelay/internal/session"
)

type otherHandle struct{}

func (otherHandle) ID() string { return "other" }

func TestLocalCapture_AcquireToggleRelease(t *testing.T) {
	c := NewLocalCapture(Devices{Audio: true, Video: true})
	h, err := c.Acquire(context.Background(), session.Constraints{Audio: true, Video: true})
	require.NoError(t, err)

	s, ok := h.(*Stream)
	require.True(t, ok)
	assert.NotEmpty(t, s.ID())
	audio, ok := s.Track(session.TrackAudio)
	require.True(t, ok)
	assert.Equal(t, webrtc.MimeTypeOpus, audio.Codec().MimeType)
	assert.Equal(t, s.ID(), audio.StreamID())
	video, ok := s.Track(session.TrackVideo)
	require.True(t, ok)
	assert.Equal(t, webrtc.MimeTypeVP8, video.Codec().MimeType)

	require.NoError(t, c.SetTrackEnabled(h, session.TrackVideo, false))
	assert.False(t, s.Enabled(session.TrackVideo))
	assert.True(t, s.Enabled(session.TrackAudio))
	assert.NoError(t, s.WriteSample(session.TrackVideo, media.Sample{Data: []byte{1}, Duration: time.Millisecond}))

	require.NoError(t, c.Release(h))
	assert.ErrorIs(t, c.Release(h), ErrStreamReleased)
	assert.ErrorIs(t, c.SetTrackEnabled(h, session.TrackAudio, true), ErrStreamReleased)
	assert.ErrorIs(t, s.WriteSample(session.TrackAudio, media.Sample{Data: []byte{1}, Duration: time.Millisecond}), ErrStreamReleased)
}

func TestLocalCapture_MissingDevice(t *testing.T) {
	c := NewLocalCapture(Devices{Audio: true})
	_, err := c.Acquire(context.Background(), session.Constraints{Audio: true, Video: true})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	h, err := c.Acquire(context.Background(), session.Constraints{Audio: true})
	require.NoError(t, err)
	assert.ErrorIs(t, c.SetTrackEnabled(h, session.TrackVideo, false), ErrDeviceUnavailable)
}

func TestLocalCapture_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalCapture(Devices{Audio: true, Video: true}).Acquire(ctx, session.Constraints{Audio: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalCapture_ForeignHandle(t *testing.T) {
	c := NewLocalCapture(Devices{Audio: true, Video: true})
	assert.ErrorIs(t, c.Release(otherHandle{}), ErrForeignStream)
	assert.ErrorIs(t, c.SetTrackEnabled(otherHandle{}, session.TrackAudio, true), ErrForeignStream)
}

func TestLocalCapture_DrivesSession(t *testing.T) {
	c := NewLocalCapture(Devices{Audio: true, Video: true})
	s := session.New("batch-1", "u", c, nopSignaler{})

	require.NoError(t, s.Start(context.Background()))
	on, err := s.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, on)
	require.NoError(t, s.End(context.Background()))
	assert.Equal(t, session.StateClosed, s.State())
}

type nopSignaler struct{}

func (nopSignaler) JoinRoom(context.Context, domain.RoomID, domain.UserID) error { return nil }
func (nopSignaler) LeaveRoom(context.Context) error                              { return nil }

func TestPeer_OfferAnswerOverPayloads(t *testing.T) {
	caller, err := NewPeer(webrtc.Configuration{}, "examiner")
	require.NoError(t, err)
	defer caller.Close()
	callee, err := NewPeer(webrtc.Configuration{}, "candidate")
	require.NoError(t, err)
	defer callee.Close()
	caller.Start(context.Background())
	callee.Start(context.Background())

	c := NewLocalCapture(Devices{Audio: true, Video: true})
	h, err := c.Acquire(context.Background(), session.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	require.NoError(t, caller.AttachStream(h.(*Stream)))

	offer, err := caller.Offer()
	require.NoError(t, err)
	n, err := protocol.ParseNegotiation(offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, n.Description.Type)

	answer, err := callee.HandleSignal(offer)
	require.NoError(t, err)
	require.NotNil(t, answer)

	reply, err := caller.HandleSignal(answer)
	require.NoError(t, err)
	assert.Nil(t, reply)

	assert.Equal(t, webrtc.SignalingStateStable, caller.SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, callee.SignalingState())
	assert.True(t, caller.Negotiated())
	assert.True(t, callee.Negotiated())
}

func TestPeer_RejectsUnknownPayload(t *testing.T) {
	p, err := NewPeer(webrtc.Configuration{}, "x")
	require.NoError(t, err)
	defer p.Close()

	_, err = p.HandleSignal([]byte(`{"hello":"world"}`))
	assert.ErrorIs(t, err, protocol.ErrUnknownPayload)
}
