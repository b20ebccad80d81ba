package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivadesk/examrelay/internal/domain"
)

type fakeHandle string

func (h fakeHandle) ID() string { return string(h) }

type fakeCapture struct {
	mu        sync.Mutex
	acquired  int
	released  []StreamHandle
	enabled   map[TrackKind]bool
	toggles   int
	denyWith  error
	toggleErr error

	entered chan struct{}
	gate    chan struct{}
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{enabled: make(map[TrackKind]bool)}
}

func (c *fakeCapture) Acquire(ctx context.Context, cons Constraints) (StreamHandle, error) {
	c.mu.Lock()
	c.acquired++
	n := c.acquired
	entered, gate, deny := c.entered, c.gate, c.denyWith
	c.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if deny != nil {
		return nil, deny
	}
	c.mu.Lock()
	c.enabled[TrackAudio] = cons.Audio
	c.enabled[TrackVideo] = cons.Video
	c.mu.Unlock()
	return fakeHandle(fmt.Sprintf("stream-%d", n)), nil
}

func (c *fakeCapture) Release(h StreamHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, h)
	return nil
}

func (c *fakeCapture) SetTrackEnabled(_ StreamHandle, kind TrackKind, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.toggleErr != nil {
		return c.toggleErr
	}
	c.toggles++
	c.enabled[kind] = enabled
	return nil
}

func (c *fakeCapture) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired, len(c.released)
}

type fakeSignaler struct {
	mu      sync.Mutex
	joins   []domain.RoomID
	leaves  int
	joinErr error

	joinEntered chan struct{}
	joinGate    chan struct{}
}

func (s *fakeSignaler) JoinRoom(_ context.Context, room domain.RoomID, _ domain.UserID) error {
	if s.joinEntered != nil {
		close(s.joinEntered)
	}
	if s.joinGate != nil {
		<-s.joinGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joinErr != nil {
		return s.joinErr
	}
	s.joins = append(s.joins, room)
	return nil
}

func (s *fakeSignaler) LeaveRoom(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves++
	return nil
}

func TestSession_StartJoinsBatchRoom(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-42", "examiner", capture, sig)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateLive, s.State())
	assert.True(t, s.AudioEnabled())
	assert.True(t, s.VideoEnabled())
	assert.Equal(t, []domain.RoomID{"batch-42"}, sig.joins)
}

func TestSession_StartThenEndAcquiresAndReleasesOnce(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-1", "u", capture, sig)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.End(context.Background()))
	require.NoError(t, s.End(context.Background()))
	s.Close()

	acquired, released := capture.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, sig.leaves)
}

func TestSession_EndDuringAcquiringStillReleases(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	capture.entered = make(chan struct{})
	capture.gate = make(chan struct{})
	s := New("batch-1", "u", capture, sig)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	<-capture.entered
	require.Equal(t, StateAcquiring, s.State())

	endErr := make(chan error, 1)
	go func() { endErr <- s.End(context.Background()) }()
	require.Eventually(t, func() bool { return s.State() == StateEnding }, time.Second, time.Millisecond)

	close(capture.gate)
	require.NoError(t, <-endErr)
	assert.ErrorIs(t, <-startErr, ErrEnded)

	acquired, released := capture.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, StateClosed, s.State())
	assert.Empty(t, sig.joins)
	assert.Equal(t, 0, sig.leaves)
}

func TestSession_SecondStartWhileAcquiring(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	capture.entered = make(chan struct{})
	capture.gate = make(chan struct{})
	s := New("batch-1", "u", capture, sig)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	<-capture.entered

	assert.ErrorIs(t, s.Start(context.Background()), ErrAcquireInProgress)

	close(capture.gate)
	require.NoError(t, <-startErr)
	acquired, _ := capture.counts()
	assert.Equal(t, 1, acquired)
	s.Close()
}

func TestSession_CaptureDeniedGoesToError(t *testing.T) {
	denied := errors.New("permission denied")
	capture, sig := newFakeCapture(), &fakeSignaler{}
	capture.denyWith = denied
	s := New("batch-1", "u", capture, sig)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, denied)
	assert.Equal(t, StateError, s.State())
	assert.ErrorIs(t, s.Err(), denied)
	assert.Empty(t, sig.joins)

	// no automatic retry
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
	acquired, released := capture.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 0, released)

	capture.mu.Lock()
	capture.denyWith = nil
	capture.mu.Unlock()
	require.NoError(t, s.Retry(context.Background()))
	assert.Equal(t, StateLive, s.State())
	assert.Nil(t, s.Err())

	s.Close()
	acquired, released = capture.counts()
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 1, released)
}

func TestSession_JoinFailureReleasesCapture(t *testing.T) {
	capture := newFakeCapture()
	sig := &fakeSignaler{joinErr: errors.New("relay down")}
	s := New("batch-1", "u", capture, sig)

	require.Error(t, s.Start(context.Background()))
	assert.Equal(t, StateError, s.State())
	_, released := capture.counts()
	assert.Equal(t, 1, released)

	s.Close()
	_, released = capture.counts()
	assert.Equal(t, 1, released)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_TogglesDoNotReacquire(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-1", "u", capture, sig)

	_, err := s.ToggleAudio()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.Start(context.Background()))

	on, err := s.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, on)
	on, err = s.ToggleVideo()
	require.NoError(t, err)
	assert.False(t, on)
	on, err = s.ToggleAudio()
	require.NoError(t, err)
	assert.True(t, on)

	assert.True(t, capture.enabled[TrackAudio])
	assert.False(t, capture.enabled[TrackVideo])
	assert.Equal(t, 3, capture.toggles)
	acquired, _ := capture.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, StateLive, s.State())
}

func TestSession_ToggleFailureKeepsFlag(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-1", "u", capture, sig)
	require.NoError(t, s.Start(context.Background()))

	capture.mu.Lock()
	capture.toggleErr = errors.New("track gone")
	capture.mu.Unlock()

	on, err := s.ToggleVideo()
	require.Error(t, err)
	assert.True(t, on)
	assert.True(t, s.VideoEnabled())
}

func TestSession_EndFromIdle(t *testing.T) {
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-1", "u", capture, sig)

	require.NoError(t, s.End(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	acquired, released := capture.counts()
	assert.Zero(t, acquired)
	assert.Zero(t, released)
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
}

func TestSession_StateListenerSeesLifecycle(t *testing.T) {
	var seen []State
	capture, sig := newFakeCapture(), &fakeSignaler{}
	s := New("batch-1", "u", capture, sig, WithStateListener(func(_, to State) {
		seen = append(seen, to)
	}))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.End(context.Background()))
	assert.Equal(t, []State{StateAcquiring, StateLive, StateEnding, StateClosed}, seen)
}

func TestSession_EndDoesNotWaitForSlowJoin(t *testing.T) {
	capture := newFakeCapture()
	sig := &fakeSignaler{joinEntered: make(chan struct{}), joinGate: make(chan struct{})}
	s := New("batch-1", "u", capture, sig)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	<-sig.joinEntered

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	endErr := make(chan error, 1)
	go func() { endErr <- s.End(ctx) }()

	select {
	case err := <-endErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("End blocked behind the room join")
	}
	acquired, released := capture.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, StateClosed, s.State())

	// the join completes late: the session leaves the room it no longer wants
	close(sig.joinGate)
	assert.ErrorIs(t, <-startErr, ErrEnded)
	sig.mu.Lock()
	assert.Equal(t, 1, sig.leaves)
	sig.mu.Unlock()
	_, released = capture.counts()
	assert.Equal(t, 1, released)
}

func TestSession_CloseDuringSlowJoin(t *testing.T) {
	capture := newFakeCapture()
	sig := &fakeSignaler{joinEntered: make(chan struct{}), joinGate: make(chan struct{})}
	s := New("batch-1", "u", capture, sig)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()
	<-sig.joinEntered

	on, err := s.ToggleAudio()
	require.NoError(t, err)
	assert.False(t, on)

	s.Close()
	_, released := capture.counts()
	assert.Equal(t, 1, released)

	sig.mu.Lock()
	sig.joinErr = errors.New("relay down")
	sig.mu.Unlock()
	close(sig.joinGate)
	assert.ErrorIs(t, <-startErr, ErrEnded)
	sig.mu.Lock()
	assert.Equal(t, 0, sig.leaves)
	sig.mu.Unlock()
	assert.Equal(t, StateClosed, s.State())
}
