package websocket

import (
	"context"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one admin console subscribed to the tag-event feed. The feed is
// one-way; frames sent by the browser are discarded.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	logger *slog.Logger
}

func NewClient(hub *Hub, conn *ws.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// Run subscribes the client and writes queued events until the peer goes
// away, ctx is cancelled, or the hub drops the client.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead keeps a reader running so pings get their pongs, and cancels
	// ctx once the connection closes.
	ctx = c.conn.CloseRead(ctx)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "feed closed")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.logger.Debug("feed write failed", "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
