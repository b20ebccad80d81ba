package orch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivadesk/examrelay/internal/app"
	"github.com/vivadesk/examrelay/internal/core"
	"github.com/vivadesk/examrelay/internal/domain"
)

type stuckConn struct {
	mu   sync.Mutex
	sent int
	full bool
}

func (c *stuckConn) TrySend(core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return core.ErrBackpressure
	}
	c.sent++
	return nil
}

func (c *stuckConn) Close() {}

func TestKickPolicyCancelsSlowMember(t *testing.T) {
	o := New(app.KickPolicy{})
	canceled := false
	o.Connect("A", &stuckConn{}, nil)
	o.Connect("S", &stuckConn{full: true}, func() { canceled = true })

	require.NoError(t, o.Join("S", "r", &domain.User{ID: "s"}))
	require.NoError(t, o.Join("A", "r", &domain.User{ID: "a"}))

	assert.True(t, canceled)
}

func TestDropPolicyKeepsSlowMember(t *testing.T) {
	o := New(app.DropPolicy{})
	canceled := false
	o.Connect("A", &stuckConn{}, nil)
	o.Connect("S", &stuckConn{full: true}, func() { canceled = true })
	require.NoError(t, o.Join("S", "r", &domain.User{ID: "s"}))
	require.NoError(t, o.Join("A", "r", &domain.User{ID: "a"}))

	o.Signal("A", "r", []byte(`{}`))

	assert.False(t, canceled)
	assert.Len(t, o.Members("r"), 2)
}

func TestDisconnectCleansUpRoom(t *testing.T) {
	o := New(nil)
	b := &stuckConn{}
	o.Connect("A", &stuckConn{}, nil)
	o.Connect("B", b, nil)
	require.NoError(t, o.Join("A", "r", &domain.User{ID: "a"}))
	require.NoError(t, o.Join("B", "r", &domain.User{ID: "b"}))

	o.OnDisconnect("A")
	o.OnDisconnect("A")
	assert.Equal(t, 1, b.sent, "B sees exactly one peer-left")

	assert.False(t, o.Leave("A"))
	assert.True(t, o.Leave("B"))
	assert.Empty(t, o.Rooms())
}

func TestStatsCountsRoomsAndMembers(t *testing.T) {
	o := New(app.DropPolicy{})
	for _, sid := range []core.SessionID{"A", "B", "C"} {
		o.Connect(sid, &stuckConn{}, nil)
	}
	require.NoError(t, o.Join("A", "r1", &domain.User{ID: "a"}))
	require.NoError(t, o.Join("B", "r1", &domain.User{ID: "b"}))
	require.NoError(t, o.Join("C", "r2", &domain.User{ID: "c"}))

	rooms, members := o.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, members)

	o.OnDisconnect("C")
	rooms, members = o.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, members)
	o.LogStats()
}
