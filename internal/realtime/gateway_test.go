package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(slog.Default())
	gw := NewGateway(hub, slog.Default(), 50*time.Second, 60*time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.Serve(w, r, r.URL.Query().Get("as"))
	}))
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?as=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  data,
	}))
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt wireEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var evt wireEvent
	err := conn.ReadJSON(&evt)
	require.Error(t, err, "expected no event, got %q", evt.Event)
}

func setup(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	sendEvent(t, conn, EventSetup, nil)
	evt := readEvent(t, conn)
	require.Equal(t, EventConnected, evt.Event)
}

func Test_Setup_Acknowledges_This_Connection_Only(t *testing.T) {
	srv, _ := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	b := dialWS(t, srv, "user-b")

	setup(t, a)
	expectSilence(t, b)
}

func Test_Typing_Reaches_Chat_Room_Members_Only(t *testing.T) {
	req := require.New(t)
	srv, _ := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	b := dialWS(t, srv, "user-b")
	c := dialWS(t, srv, "user-c")
	setup(t, a)
	setup(t, b)
	setup(t, c)

	sendEvent(t, a, EventJoinChat, "chat-1")
	sendEvent(t, b, EventJoinChat, "chat-1")
	// user-c never joins chat-1.

	// join-chat has no acknowledgment; give the server a moment to
	// process the joins before typing.
	time.Sleep(100 * time.Millisecond)

	sendEvent(t, a, EventTyping, map[string]interface{}{
		"room": "chat-1",
		"user": map[string]string{"_id": "user-a", "name": "alice"},
	})

	evt := readEvent(t, b)
	req.Equal(EventTyping, evt.Event)
	var typist struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	req.NoError(json.Unmarshal(evt.Data, &typist))
	req.Equal("user-a", typist.ID)
	req.Equal("alice", typist.Name)

	expectSilence(t, a)
	expectSilence(t, c)

	sendEvent(t, a, EventStopTyping, map[string]string{"room": "chat-1"})
	stop := readEvent(t, b)
	req.Equal(EventStopTyping, stop.Event)
}

// Delivery happens server-side through the coordinator; the gateway must
// drop the client's new-message relay or recipients would see every message
// twice.
func Test_NewMessage_Relay_Is_Ignored(t *testing.T) {
	srv, _ := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	b := dialWS(t, srv, "user-b")
	setup(t, a)
	setup(t, b)

	message := map[string]interface{}{
		"_id":     "m1",
		"sender":  map[string]string{"_id": "user-a", "name": "alice"},
		"content": "hi",
		"chat": map[string]interface{}{
			"_id": "chat-1",
			"users": []map[string]string{
				{"_id": "user-a", "name": "alice"},
				{"_id": "user-b", "name": "bob"},
			},
		},
	}
	sendEvent(t, a, EventNewMessage, message)

	expectSilence(t, b)
	expectSilence(t, a)
}

func Test_JoinChat_Before_Setup_Is_Ignored(t *testing.T) {
	srv, _ := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	b := dialWS(t, srv, "user-b")
	setup(t, a)
	// b joins without setup; the event must be dropped silently.
	sendEvent(t, b, EventJoinChat, "chat-1")
	sendEvent(t, a, EventJoinChat, "chat-1")
	time.Sleep(100 * time.Millisecond)

	sendEvent(t, a, EventTyping, map[string]interface{}{
		"room": "chat-1",
		"user": map[string]string{"_id": "user-a"},
	})
	expectSilence(t, b)
}

func Test_Malformed_Events_Are_Ignored(t *testing.T) {
	srv, _ := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	setup(t, a)

	sendEvent(t, a, "no-such-event", map[string]string{"x": "y"})
	sendEvent(t, a, EventTyping, "not-an-object")
	sendEvent(t, a, EventNewMessage, map[string]string{"content": "no chat"})
	expectSilence(t, a)

	// The connection survives the garbage.
	sendEvent(t, a, EventJoinChat, "chat-1")
	time.Sleep(50 * time.Millisecond)
	sendEvent(t, a, EventStopTyping, map[string]string{"room": "chat-1"})
	expectSilence(t, a)
}

func Test_Disconnect_Leaves_Rooms(t *testing.T) {
	req := require.New(t)
	srv, hub := newWSServer(t)

	a := dialWS(t, srv, "user-a")
	setup(t, a)
	sendEvent(t, a, EventJoinChat, "chat-1")

	req.Eventually(func() bool {
		return hub.occupancy(chatRoom("chat-1")) == 1
	}, time.Second, 10*time.Millisecond)

	a.Close()

	req.Eventually(func() bool {
		return hub.occupancy(chatRoom("chat-1")) == 0 &&
			hub.occupancy(personalRoom("user-a")) == 0
	}, time.Second, 10*time.Millisecond)
}
