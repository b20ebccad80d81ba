package relayclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	httpadapter "github.com/vivadesk/examrelay/internal/adapters/http"
	"github.com/vivadesk/examrelay/internal/app"
	"github.com/vivadesk/examrelay/internal/app/orch"
	"github.com/vivadesk/examrelay/internal/config"
	"github.com/vivadesk/examrelay/internal/protocol"
	"github.com/vivadesk/examrelay/internal/storage"
)

func startRelay(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		PingPeriod: time.Minute,
		SendBuffer: 16,
	}
	stores := httpadapter.Stores{
		Papers:  storage.NewInMemoryQuestionPaperRepository(),
		Batches: storage.NewInMemoryBatchRepository(),
		Records: storage.NewInMemoryGradingRecordRepository(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(httpadapter.SetupRouter(ctx, cfg, orch.New(app.DropPolicy{}), stores))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func nextEvent(t *testing.T, c *Client) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return protocol.Event{}
}

func TestClient_JoinSignalLeave(t *testing.T) {
	url := startRelay(t)
	ctx := context.Background()
	a, b := dial(t, url), dial(t, url)

	require.NoError(t, a.JoinRoom(ctx, "batch-42", "examiner"))
	require.NoError(t, b.JoinRoom(ctx, "batch-42", "candidate"))
	assert.NotEmpty(t, a.SID())
	assert.NotEqual(t, a.SID(), b.SID())

	ev := nextEvent(t, a)
	assert.Equal(t, protocol.TypePeerJoined, ev.Type)
	assert.Equal(t, "candidate", ev.UserID)

	require.NoError(t, b.Signal(ctx, []byte(`{"candidate":{"candidate":"c1"}}`)))
	require.NoError(t, b.Signal(ctx, []byte(`{"candidate":{"candidate":"c2"}}`)))
	first, second := nextEvent(t, a), nextEvent(t, a)
	assert.Equal(t, b.SID(), first.Sender)
	assert.JSONEq(t, `{"candidate":{"candidate":"c1"}}`, string(first.Payload))
	assert.JSONEq(t, `{"candidate":{"candidate":"c2"}}`, string(second.Payload))

	require.NoError(t, b.LeaveRoom(ctx))
	ev = nextEvent(t, a)
	assert.Equal(t, protocol.TypePeerLeft, ev.Type)
	assert.Equal(t, "candidate", ev.UserID)

	assert.ErrorIs(t, b.Signal(ctx, []byte(`{}`)), ErrNotInRoom)
	require.NoError(t, b.Ping(ctx))
}

func TestClient_SecondRoomRejected(t *testing.T) {
	url := startRelay(t)
	ctx := context.Background()
	a := dial(t, url)

	require.NoError(t, a.JoinRoom(ctx, "r1", "u"))
	assert.ErrorIs(t, a.JoinRoom(ctx, "r2", "u"), ErrAlreadyInRoom)
	room, ok := a.Room()
	assert.True(t, ok)
	assert.EqualValues(t, "r1", room)

	// same room again is accepted
	require.NoError(t, a.JoinRoom(ctx, "r1", "u"))
}

func TestClient_InvalidJoinIsRejected(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url)

	err := a.JoinRoom(context.Background(), "", "u")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.NotEmpty(t, rejected.Reason)
}

func TestClient_CloseEndsEvents(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url)
	a.Close()

	select {
	case _, ok := <-a.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events not closed")
	}
	assert.ErrorIs(t, a.JoinRoom(context.Background(), "r", "u"), ErrClosed)
}

func TestClient_AbandonedReplyDoesNotAnswerNextRequest(t *testing.T) {
	url := startRelay(t)
	ctx := context.Background()
	a := dial(t, url)

	// a join whose caller gave up before the rejection came back
	require.NoError(t, a.send(ctx, protocol.Command{ID: "gave-up", Type: protocol.TypeJoinRoom, Room: ""}))

	require.NoError(t, a.JoinRoom(ctx, "batch-1", "u1"))
	room, ok := a.Room()
	require.True(t, ok)
	assert.EqualValues(t, "batch-1", room)
}

func TestClient_TracksMembershipFromAbandonedJoin(t *testing.T) {
	url := startRelay(t)
	ctx := context.Background()
	a := dial(t, url)

	require.NoError(t, a.send(ctx, protocol.Command{ID: "gave-up", Type: protocol.TypeJoinRoom, Room: "batch-2", UserID: "u2"}))
	// the pong is queued behind the join reply
	require.NoError(t, a.Ping(ctx))

	room, ok := a.Room()
	require.True(t, ok)
	assert.EqualValues(t, "batch-2", room)
	assert.NotEmpty(t, a.SID())
	require.NoError(t, a.Signal(ctx, []byte(`{}`)))
}
