package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// StateHandler applies a device state update sent by a client.
type StateHandler func(ctx context.Context, userID, deviceID int64, state map[string]any) error

// stateUpdate is the only message clients send.
type stateUpdate struct {
	DeviceID int64          `json:"device_id"`
	State    map[string]any `json:"state"`
}

type ack struct {
	Status   string `json:"status"`
	DeviceID int64  `json:"device_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client represents a single WebSocket connection.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	userID  int64
	onState StateHandler
	logger  *slog.Logger
	send    chan []byte
}

// NewClient creates a Client for userID tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, userID int64, onState StateHandler) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		onState: onState,
		logger:  hub.logger.With("user_id", userID),
		send:    make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump handles state updates until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.reply(ctx, c.handle(ctx, data))
	}
}

func (c *Client) handle(ctx context.Context, data []byte) ack {
	var msg stateUpdate
	if err := json.Unmarshal(data, &msg); err != nil || msg.DeviceID == 0 {
		return ack{Status: "error", Error: "expected {\"device_id\": ..., \"state\": {...}}"}
	}
	if msg.State == nil {
		msg.State = map[string]any{}
	}
	if c.onState != nil {
		if err := c.onState(ctx, c.userID, msg.DeviceID, msg.State); err != nil {
			c.logger.Warn("process device state", "device_id", msg.DeviceID, "error", err)
			return ack{Status: "error", DeviceID: msg.DeviceID, Error: err.Error()}
		}
	}
	return ack{Status: "processed", DeviceID: msg.DeviceID}
}

func (c *Client) reply(ctx context.Context, a ack) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel; connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
