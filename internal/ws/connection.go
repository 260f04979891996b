package ws

import (
	"sync"
	"time"

	fasthttpws "github.com/fasthttp/websocket"
	"github.com/gofiber/websocket/v2"
)

// Connection wraps one live websocket client. It satisfies
// presence.Subscriber; events are queued on send and dropped if the client
// cannot keep up, since the store is the source of truth anyway.
type Connection struct {
	ws       *websocket.Conn
	send     chan any
	userID   string
	username string
	srv      *Server

	mu     sync.Mutex
	closed bool
}

func newConnection(wsConn *websocket.Conn, userID, username string, srv *Server) *Connection {
	return &Connection{
		ws:       wsConn,
		send:     make(chan any, 256),
		userID:   userID,
		username: username,
		srv:      srv,
	}
}

func (c *Connection) UserID() string { return c.userID }

func (c *Connection) Send(event any) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

type command struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (c *Connection) readPump() {
	defer c.close()

	c.ws.SetReadLimit(c.srv.maxMsgSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.srv.pingInterval))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * c.srv.pingInterval))
	})

	for {
		var cmd command
		if err := c.ws.ReadJSON(&cmd); err != nil {
			if _, ok := err.(*fasthttpws.CloseError); !ok && websocket.IsUnexpectedCloseError(err) {
				c.srv.log.Debug("read error: " + err.Error())
			}
			return
		}
		switch cmd.Type {
		case "join":
			c.srv.registry.Join(c, cmd.ConversationID)
		case "leave":
			c.srv.registry.Leave(c, cmd.ConversationID)
		case "typing":
			c.srv.broadcastExcept(cmd.ConversationID, c, typingEvent{
				Type:           "typing",
				ConversationID: cmd.ConversationID,
				UserID:         c.userID,
				Username:       c.username,
			})
		case "stopTyping":
			c.srv.broadcastExcept(cmd.ConversationID, c, stopTypingEvent{
				Type:           "stopTyping",
				ConversationID: cmd.ConversationID,
			})
		default:
			// unknown commands are ignored
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.srv.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.writeDeadline))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.writeDeadline))
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
			c.srv.touchOnline(c.userID)
		}
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
}
