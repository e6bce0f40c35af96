package websocket

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Client is one websocket connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	// Buffered channel of outbound frames, closed by the hub on unregister.
	Send chan []byte
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, Conn: conn, Send: make(chan []byte, sendBufferSize)}
}

// offer queues data without blocking; false means the client is not keeping up.
// Callers hold the hub's read lock, which keeps Send open.
func (c *Client) offer(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads frames and hands each to handle, one at a time, so a connection's messages
// are processed in order. It returns when the peer goes away or ctx is done.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, c *Client, data []byte)) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	log.Info("ReadPump started for client", zap.String("clientID", c.ID), zap.String("remote_addr", c.Conn.RemoteAddr().String()))

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error", zap.String("clientID", c.ID), zap.Error(err))
			} else {
				log.Info("WebSocket connection closed by peer", zap.String("clientID", c.ID), zap.Error(err))
			}
			return
		}
		log.Debug("Received message from client", zap.String("clientID", c.ID), zap.ByteString("message", message))
		handle(ctx, c, message)
	}
}

// WritePump writes queued frames and keep-alive pings. It is the only writer on the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		log.Info("WritePump stopped for client", zap.String("clientID", c.ID))
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
			if err != nil {
				log.Warn("Failed to send close control message", zap.String("clientID", c.ID), zap.Error(err))
			}
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message to client", zap.String("clientID", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error("Failed to write ping message to client", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
