package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/roost/pkg/board"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGateway(t *testing.T) (*board.Client, *Manager, *httptest.Server) {
	t.Helper()
	client, m, srv, _ := setupGatewayRedis(t)
	return client, m, srv
}

func setupGatewayRedis(t *testing.T) (*board.Client, *Manager, *httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	m := NewManager(client, DefaultConfig())
	t.Cleanup(func() { m.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/ws/")
		if err := m.Serve(w, r, id, r.URL.Query().Get("votes") == "1"); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	return client, m, srv, mr
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForConnections(t *testing.T, m *Manager, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Stats().Connections == n }, 2*time.Second, 5*time.Millisecond)
}

func TestManager_SnapshotThenSessionEvents(t *testing.T) {
	ctx := context.Background()
	client, m, srv := setupGateway(t)
	presID := uuid.New().String()

	conn := dial(t, srv, "/ws/"+presID)

	snapshot := readMessage(t, conn)
	assert.Equal(t, MessageSession, snapshot.Type)
	assert.Equal(t, string(board.SessionEventEnded), snapshot.Kind, "no session yet")

	waitForConnections(t, m, 1)

	require.NoError(t, client.SaveSession(ctx, &board.ActiveSession{
		PresentationID: presID,
		SlideID:        "s1",
		Phase:          board.PhaseVoting,
		StartTimeMs:    1,
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageSession, msg.Type)
	assert.Equal(t, string(board.SessionEventUpdated), msg.Kind)
	require.NotNil(t, msg.Session)
	assert.Equal(t, board.PhaseVoting, msg.Session.Phase)
}

func TestManager_SnapshotCarriesStoredSession(t *testing.T) {
	ctx := context.Background()
	client, m, srv := setupGateway(t)
	presID := uuid.New().String()

	require.NoError(t, client.SaveSession(ctx, &board.ActiveSession{
		PresentationID: presID,
		SlideID:        "s2",
		Phase:          board.PhaseVoting,
		StartTimeMs:    1,
	}))

	conn := dial(t, srv, "/ws/"+presID)
	snapshot := readMessage(t, conn)
	assert.Equal(t, string(board.SessionEventUpdated), snapshot.Kind)
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, "s2", snapshot.Session.SlideID)
	assert.Equal(t, 1, m.Stats().Connections, "registered before the snapshot is sent")

	stored, err := client.GetSession(ctx, presID)
	require.NoError(t, err)
	stored.Phase = board.PhaseFinished
	require.NoError(t, client.SaveSession(ctx, stored))

	msg := readMessage(t, conn)
	require.NotNil(t, msg.Session)
	assert.Equal(t, board.PhaseFinished, msg.Session.Phase)
}

func TestManager_MalformedEventsDoNotStallFanOut(t *testing.T) {
	ctx := context.Background()
	client, m, srv, mr := setupGatewayRedis(t)
	presID := uuid.New().String()

	conn := dial(t, srv, "/ws/"+presID)
	readMessage(t, conn)
	waitForConnections(t, m, 1)

	channel := board.SessionEventsChannel("test-instance", presID)
	for i := 0; i < 25; i++ {
		mr.Publish(channel, "{not json")
	}

	require.NoError(t, client.SaveSession(ctx, &board.ActiveSession{
		PresentationID: presID,
		SlideID:        "s1",
		Phase:          board.PhaseReading,
		StartTimeMs:    1,
	}))

	msg := readMessage(t, conn)
	require.NotNil(t, msg.Session)
	assert.Equal(t, board.PhaseReading, msg.Session.Phase)
}

func TestManager_VotesOnlyForSubscribedConnections(t *testing.T) {
	ctx := context.Background()
	client, m, srv := setupGateway(t)
	presID := uuid.New().String()

	presenter := dial(t, srv, "/ws/"+presID+"?votes=1")
	voter := dial(t, srv, "/ws/"+presID)
	readMessage(t, presenter)
	readMessage(t, voter)
	waitForConnections(t, m, 2)

	require.NoError(t, client.RecordVote(ctx, &board.Vote{
		PresentationID: presID,
		SlideID:        "s1",
		OptionID:       "a",
		VoterName:      "ada",
	}))
	require.NoError(t, client.DeleteSession(ctx, presID))

	// The two streams use separate channels, so their relative order is not fixed
	got := map[MessageType]Message{}
	for i := 0; i < 2; i++ {
		msg := readMessage(t, presenter)
		got[msg.Type] = msg
	}
	require.NotNil(t, got[MessageVote].Vote)
	assert.Equal(t, "ada", got[MessageVote].Vote.VoterName)
	assert.Equal(t, string(board.SessionEventEnded), got[MessageSession].Kind)

	// The voter socket skips the vote and sees the session end directly
	msg := readMessage(t, voter)
	assert.Equal(t, MessageSession, msg.Type)
	assert.Equal(t, string(board.SessionEventEnded), msg.Kind)
}

func TestManager_PoolsAreReleased(t *testing.T) {
	_, m, srv := setupGateway(t)
	presID := uuid.New().String()

	conn := dial(t, srv, "/ws/"+presID)
	readMessage(t, conn)
	waitForConnections(t, m, 1)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Presentations)
	assert.Equal(t, 1, stats.PerPresentation[presID])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	waitForConnections(t, m, 0)
	assert.Equal(t, 0, m.Stats().Presentations)
}
