package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/protocol"
)

// fakeConn records frames; capacity<0 means unbounded.
type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool
}

func newFakeConn() *fakeConn { return &fakeConn{capacity: -1} }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.capacity >= 0 && len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) events(t *testing.T) []protocol.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Event, 0, len(c.frames))
	for _, f := range c.frames {
		ev, err := protocol.DecodeEvent(f)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func sidOf(s string) core.SessionID { return core.SessionID(s) }

func roomOf(s string) domain.RoomID { return domain.RoomID(s) }
