package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway owns the websocket lifecycle and the event protocol. Malformed
// or unauthorized events are silently ignored; the realtime channel has no
// error surface.
type Gateway struct {
	hub          *Hub
	log          *slog.Logger
	pingInterval time.Duration
	pongWait     time.Duration
	upgrader     websocket.Upgrader
}

func NewGateway(hub *Hub, log *slog.Logger, pingInterval, pongWait time.Duration) *Gateway {
	return &Gateway{
		hub:          hub,
		log:          log,
		pingInterval: pingInterval,
		pongWait:     pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the CORS layer on the
				// HTTP surface; the upgrade itself accepts any origin.
				return true
			},
		},
	}
}

// Serve upgrades the request and runs the session until disconnect. The
// caller has already authenticated the user.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(userID, conn)
	g.log.Debug("websocket connected", "user", userID)

	go g.writePump(c)
	g.readPump(c)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.hub.Remove(c)
		c.close()
		g.log.Debug("websocket disconnected", "user", c.userID)
	}()

	c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.Debug("websocket read error", "user", c.userID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
		g.handle(c, env)
	}
}

func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(g.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				g.hub.Remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				g.hub.Remove(c)
				return
			}
		}
	}
}

func (g *Gateway) handle(c *Client, env Envelope) {
	switch env.Event {
	case EventSetup:
		// The personal room is keyed by the authenticated user id; any id
		// in the payload is ignored.
		g.hub.Join(personalRoom(c.userID), c)
		c.identified = true
		c.enqueue(outbound{Event: EventConnected})

	case EventJoinChat:
		if !c.identified {
			return
		}
		chatID := parseRoomID(env.Data)
		if chatID == "" {
			return
		}
		g.hub.Join(chatRoom(chatID), c)

	case EventNewMessage:
		// The message service publishes every persisted message to the
		// delivery coordinator, so honoring the client's re-announce as
		// well would deliver each message twice.
		g.log.Debug("ignoring client new-message relay", "user", c.userID)

	case EventTyping:
		var payload struct {
			Room string          `json:"room"`
			User json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Room == "" {
			return
		}
		g.hub.Broadcast(chatRoom(payload.Room), EventTyping, payload.User, c)

	case EventStopTyping:
		var payload struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Room == "" {
			return
		}
		g.hub.Broadcast(chatRoom(payload.Room), EventStopTyping, nil, c)

	default:
		g.log.Debug("ignoring unknown event", "event", env.Event, "user", c.userID)
	}
}

// parseRoomID accepts both a bare string payload and {"chatId": ...}, the
// two shapes clients send for join-chat.
func parseRoomID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var payload struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		return payload.ChatID
	}
	return ""
}
