// Package session drives the local side of a live assessment: capture device
// lifecycle, audio/video toggles and room membership.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/domain"
)

var (
	ErrAcquireInProgress = errors.New("capture acquisition in progress")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrEnded             = errors.New("session ended")
)

type Option func(*Session)

// WithStateListener registers fn to observe every transition. fn runs with
// the session lock held and must not call back into the session.
func WithStateListener(fn func(from, to State)) Option {
	return func(s *Session) { s.listener = fn }
}

// Session owns one capture acquisition at a time. The handle is released
// exactly once on every path out of Live or Acquiring.
type Session struct {
	mu       sync.Mutex
	state    State
	room     domain.RoomID
	user     domain.UserID
	capture  Capture
	signaler RoomSignaler
	listener func(from, to State)

	handle       StreamHandle
	joined       bool
	audioEnabled bool
	videoEnabled bool
	question     int
	lastErr      error

	acquireCancel context.CancelFunc
	acquireDone   chan struct{}
}

func New(room domain.RoomID, user domain.UserID, capture Capture, signaler RoomSignaler, opts ...Option) *Session {
	s := &Session{
		state:    StateIdle,
		room:     room,
		user:     user,
		capture:  capture,
		signaler: signaler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Room() domain.RoomID { return s.room }

func (s *Session) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

func (s *Session) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoEnabled
}

// Err is the failure that put the session into Error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stream is the live capture handle, nil outside Live.
func (s *Session) Stream() StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) ActiveQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question
}

func (s *Session) SetActiveQuestion(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.question = idx
}

// Start acquires audio and video, then joins the room.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateAcquiring:
		s.mu.Unlock()
		return ErrAcquireInProgress
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st)
	}
	actx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.acquireCancel, s.acquireDone = cancel, done
	s.setStateLocked(StateAcquiring)
	s.mu.Unlock()

	handle, err := s.capture.Acquire(actx, Constraints{Audio: true, Video: true})

	s.mu.Lock()
	live, err := s.settleAcquireLocked(handle, err)
	s.acquireCancel, s.acquireDone = nil, nil
	cancel()
	close(done)
	s.mu.Unlock()
	if !live {
		return err
	}

	// No lock across the round trip: End, Close and toggles must not wait on the relay.
	joinErr := s.signaler.JoinRoom(ctx, s.room, s.user)

	s.mu.Lock()
	if s.state != StateLive {
		// End ran during the join and has released the capture already.
		s.mu.Unlock()
		if joinErr == nil {
			if err := s.signaler.LeaveRoom(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Str("module", "session").Str("room", string(s.room)).Msg("room leave failed")
			}
		}
		return ErrEnded
	}
	if joinErr != nil {
		s.lastErr = joinErr
		s.releaseLocked()
		s.setStateLocked(StateError)
		s.mu.Unlock()
		log.Warn().Err(joinErr).Str("module", "session").Str("room", string(s.room)).Msg("room join failed")
		return fmt.Errorf("join room: %w", joinErr)
	}
	s.joined = true
	s.mu.Unlock()
	return nil
}

// settleAcquireLocked moves Acquiring to Live, Error or, when End ran while
// the device prompt was open, Closed. It reports whether the session is Live.
func (s *Session) settleAcquireLocked(handle StreamHandle, err error) (bool, error) {
	if s.state != StateAcquiring {
		if err == nil && handle != nil {
			s.handle = handle
			s.releaseLocked()
		}
		s.setStateLocked(StateClosed)
		return false, ErrEnded
	}
	if err != nil {
		s.lastErr = err
		s.setStateLocked(StateError)
		log.Warn().Err(err).Str("module", "session").Str("room", string(s.room)).Msg("capture denied")
		return false, fmt.Errorf("acquire capture: %w", err)
	}
	s.handle = handle
	s.audioEnabled, s.videoEnabled = true, true
	s.setStateLocked(StateLive)
	return true, nil
}

// Retry starts over after an Error. It is the only way out of Error besides End.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateError {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, st)
	}
	s.lastErr = nil
	s.setStateLocked(StateIdle)
	s.mu.Unlock()
	return s.Start(ctx)
}

func (s *Session) ToggleAudio() (bool, error) { return s.toggle(TrackAudio) }

func (s *Session) ToggleVideo() (bool, error) { return s.toggle(TrackVideo) }

// toggle flips the track without reacquiring the device.
func (s *Session) toggle(kind TrackKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag := &s.audioEnabled
	if kind == TrackVideo {
		flag = &s.videoEnabled
	}
	if s.state != StateLive {
		return *flag, fmt.Errorf("%w: toggle %s in %s", ErrInvalidTransition, kind, s.state)
	}
	next := !*flag
	if err := s.capture.SetTrackEnabled(s.handle, kind, next); err != nil {
		return *flag, fmt.Errorf("set %s track: %w", kind, err)
	}
	*flag = next
	return next, nil
}

// End releases the device, leaves the room and closes the session. Calling
// it mid-acquisition waits for the acquisition to settle. Repeated calls are
// no-ops.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateError:
		s.releaseLocked()
		s.setStateLocked(StateClosed)
		s.mu.Unlock()
		return nil
	case StateEnding, StateClosed:
		s.mu.Unlock()
		return nil
	case StateAcquiring:
		s.setStateLocked(StateEnding)
		cancel, done := s.acquireCancel, s.acquireDone
		s.mu.Unlock()
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Live
	s.setStateLocked(StateEnding)
	s.releaseLocked()
	joined := s.joined
	s.joined = false
	s.mu.Unlock()

	var leaveErr error
	if joined {
		if leaveErr = s.signaler.LeaveRoom(ctx); leaveErr != nil {
			log.Warn().Err(leaveErr).Str("module", "session").Str("room", string(s.room)).Msg("room leave failed")
		}
	}

	s.mu.Lock()
	s.setStateLocked(StateClosed)
	s.mu.Unlock()
	return leaveErr
}

// Close is the unconditional teardown for an abandoned view.
func (s *Session) Close() {
	_ = s.End(context.Background())
}

func (s *Session) releaseLocked() {
	if s.handle == nil {
		return
	}
	h := s.handle
	s.handle = nil
	s.audioEnabled, s.videoEnabled = false, false
	if err := s.capture.Release(h); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("stream", h.ID()).Msg("release capture")
		return
	}
	log.Debug().Str("module", "session").Str("stream", h.ID()).Msg("capture released")
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	log.Debug().Str("module", "session").Str("room", string(s.room)).Stringer("from", from).Stringer("to", to).Msg("state")
	if s.listener != nil {
		s.listener(from, to)
	}
}
