package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/session"
)

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrStreamReleased    = errors.New("stream released")
	ErrForeignStream     = errors.New("stream not produced by this capture")
)

// Devices says which local devices the platform exposes.
type Devices struct {
	Audio bool
	Video bool
}

// LocalCapture hands out pion sample tracks as the local media stream.
type LocalCapture struct {
	devices Devices
}

func NewLocalCapture(devices Devices) *LocalCapture {
	return &LocalCapture{devices: devices}
}

// Stream is one acquisition: an opus audio track and a vp8 video track
// sharing a stream id.
type Stream struct {
	id string

	mu       sync.RWMutex
	tracks   map[session.TrackKind]*webrtc.TrackLocalStaticSample
	enabled  map[session.TrackKind]bool
	released bool
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Track(kind session.TrackKind) (*webrtc.TrackLocalStaticSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[kind]
	return t, ok
}

func (s *Stream) Enabled(kind session.TrackKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[kind]
}

// WriteSample feeds captured media into the track. Disabled tracks swallow
// samples so the remote side sees silence or a frozen frame.
func (s *Stream) WriteSample(kind session.TrackKind, sample media.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return ErrStreamReleased
	}
	t, ok := s.tracks[kind]
	if !ok || !s.enabled[kind] {
		return nil
	}
	return t.WriteSample(sample)
}

// Attach adds every track of the stream to pc.
func (s *Stream) Attach(pc *webrtc.PeerConnection) ([]*webrtc.RTPSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return nil, ErrStreamReleased
	}
	senders := make([]*webrtc.RTPSender, 0, len(s.tracks))
	for _, kind := range []session.TrackKind{session.TrackAudio, session.TrackVideo} {
		t, ok := s.tracks[kind]
		if !ok {
			continue
		}
		sender, err := pc.AddTrack(t)
		if err != nil {
			return senders, fmt.Errorf("add %s track: %w", kind, err)
		}
		senders = append(senders, sender)
	}
	return senders, nil
}

func (c *LocalCapture) Acquire(ctx context.Context, cons session.Constraints) (session.StreamHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if (cons.Audio && !c.devices.Audio) || (cons.Video && !c.devices.Video) {
		return nil, ErrDeviceUnavailable
	}

	s := &Stream{
		id:      uuid.NewString(),
		tracks:  make(map[session.TrackKind]*webrtc.TrackLocalStaticSample),
		enabled: make(map[session.TrackKind]bool),
	}
	if cons.Audio {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", s.id)
		if err != nil {
			return nil, fmt.Errorf("audio track: %w", err)
		}
		s.tracks[session.TrackAudio], s.enabled[session.TrackAudio] = t, true
	}
	if cons.Video {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", s.id)
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		s.tracks[session.TrackVideo], s.enabled[session.TrackVideo] = t, true
	}
	log.Info().Str("module", "rtc.capture").Str("stream", s.id).Bool("audio", cons.Audio).Bool("video", cons.Video).Msg("capture acquired")
	return s, nil
}

func (c *LocalCapture) Release(h session.StreamHandle) error {
	s, ok := h.(*Stream)
	if !ok {
		return ErrForeignStream
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrStreamReleased
	}
	s.released = true
	for k := range s.enabled {
		s.enabled[k] = false
	}
	log.Info().Str("module", "rtc.capture").Str("stream", s.id).Msg("capture released")
	return nil
}

func (c *LocalCapture) SetTrackEnabled(h session.StreamHandle, kind session.TrackKind, enabled bool) error {
	s, ok := h.(*Stream)
	if !ok {
		return ErrForeignStream
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrStreamReleased
	}
	if _, ok := s.tracks[kind]; !ok {
		return fmt.Errorf("%w: no %s track", ErrDeviceUnavailable, kind)
	}
	s.enabled[kind] = enabled
	log.Debug().Str("module", "rtc.capture").Str("stream", s.id).Str("kind", string(kind)).Bool("enabled", enabled).Msg("track toggled")
	return nil
}
