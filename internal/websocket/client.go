package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxInboundSize = 1 << 10
)

// Client is one dashboard connection. A client bound to no member (id 0)
// is a shared household display and only sees family-wide events.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	memberID atomic.Int64
	members  MemberLookup
}

// command is what a dashboard may send: {"type":"select_member","member_id":3}
// switches the member whose personal tasks the display follows; member_id 0
// returns it to household mode.
type command struct {
	Type     string `json:"type"`
	MemberID int64  `json:"member_id"`
}

// NewClient wraps conn for memberID. members resolves select_member
// requests.
func NewClient(hub *Hub, conn *ws.Conn, memberID int64, members MemberLookup) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		members: members,
	}
	c.memberID.Store(memberID)
	return c
}

// MemberID returns the member the client currently follows.
func (c *Client) MemberID() int64 {
	return c.memberID.Load()
}

// Run registers the client and pumps messages until the connection or ctx
// ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(maxInboundSize)
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		c.reply(c.handle(ctx, data))
	}
}

func (c *Client) handle(ctx context.Context, data []byte) Message {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return errorMessage("malformed command")
	}

	switch cmd.Type {
	case "select_member":
		if cmd.MemberID < 0 {
			return errorMessage("invalid member")
		}
		if cmd.MemberID > 0 {
			m, err := c.members.GetByID(ctx, cmd.MemberID)
			if err != nil {
				c.hub.logger.Error("websocket member lookup", "error", err, "member_id", cmd.MemberID)
				return errorMessage("member lookup failed")
			}
			if m == nil {
				return errorMessage("unknown member")
			}
		}
		c.memberID.Store(cmd.MemberID)
		return NewMessage("member", "selected", cmd.MemberID, nil)
	default:
		return errorMessage("unknown command " + cmd.Type)
	}
}

// reply queues a direct response, bypassing audience filtering.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func errorMessage(text string) Message {
	return Message{Type: "error", Extra: map[string]any{"message": text}}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
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
