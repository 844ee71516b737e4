package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, memberID int64) *Client {
	return NewClient(hub, nil, memberID, fakeMembers{1: "Alice", 2: "Bob"})
}

type fakeMembers map[int64]string

func (f fakeMembers) GetByID(_ context.Context, id int64) (*model.Member, error) {
	if id < 0 {
		return nil, errors.New("boom")
	}
	name, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &model.Member{ID: id, Name: name}, nil
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		require.NoError(t, json.Unmarshal(data, &got))
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	default:
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c1, c2 := mockClient(hub, 0), mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c2)
	hub.Unregister(c2) // double unregister must not panic
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastToEveryone(t *testing.T) {
	hub := NewHub(slog.Default())
	display, alice := mockClient(hub, 0), mockClient(hub, 1)
	hub.Register(display)
	hub.Register(alice)

	hub.Broadcast(NewMessage("execution", "started", 42, map[string]any{"status": "IN_PROGRESS"}))

	for _, c := range []*Client{display, alice} {
		got := receive(t, c)
		assert.Equal(t, "execution_started", got.Type)
		assert.Equal(t, "execution", got.Entity)
		assert.Equal(t, int64(42), got.ID)
	}
}

func TestBroadcastRestrictedToMembers(t *testing.T) {
	hub := NewHub(slog.Default())
	display, alice, bob := mockClient(hub, 0), mockClient(hub, 1), mockClient(hub, 2)
	for _, c := range []*Client{display, alice, bob} {
		hub.Register(c)
	}

	hub.Broadcast(NewMessage("execution", "completed", 7, nil).For(2))

	got := receive(t, bob)
	assert.Equal(t, "execution_completed", got.Type)
	assertNothing(t, alice)
	assertNothing(t, display)
}

func TestBroadcastFullBufferDrops(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 0)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", int64(i), nil))
	}
	hub.Broadcast(NewMessage("test", "dropped", 999, nil))

	assert.Len(t, c.send, sendBufferSize)
	hub.Unregister(c)
}

func TestMembersNotSerialized(t *testing.T) {
	data, err := json.Marshal(NewMessage("execution", "assigned", 1, nil).For(3))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "members")
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := mockClient(hub, id)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", 0, nil).For(id))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}

	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestSelectMemberRebindsAudience(t *testing.T) {
	hub := NewHub(slog.Default())
	display := mockClient(hub, 0)
	hub.Register(display)

	got := display.handle(context.Background(), []byte(`{"type":"select_member","member_id":2}`))
	assert.Equal(t, "member_selected", got.Type)
	assert.Equal(t, int64(2), display.MemberID())

	hub.Broadcast(NewMessage("execution", "assigned", 5, nil).For(2))
	assert.Equal(t, "execution_assigned", receive(t, display).Type)

	got = display.handle(context.Background(), []byte(`{"type":"select_member","member_id":0}`))
	assert.Equal(t, "member_selected", got.Type)
	hub.Broadcast(NewMessage("execution", "assigned", 5, nil).For(2))
	assertNothing(t, display)
}

func TestClientCommandErrors(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"malformed", `{"type":`, "malformed command"},
		{"unknown member", `{"type":"select_member","member_id":9}`, "unknown member"},
		{"negative member", `{"type":"select_member","member_id":-1}`, "invalid member"},
		{"unknown command", `{"type":"dance"}`, "unknown command dance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handle(context.Background(), []byte(tt.in))
			assert.Equal(t, "error", got.Type)
			assert.Equal(t, tt.want, got.Extra["message"])
			assert.Equal(t, int64(1), c.MemberID(), "binding unchanged")
		})
	}
}
