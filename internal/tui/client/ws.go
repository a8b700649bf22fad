package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/runtrace/runtrace/internal/session"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to the runtrace daemon.
type WSClient struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	seq     uint64
	pingCtx context.CancelFunc
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSRetryMsg is sent when a dial fails; Delay is the wait before the next
// attempt.
type WSRetryMsg struct {
	Err   error
	Delay time.Duration
}

// WSSnapshotMsg delivers a full run snapshot.
type WSSnapshotMsg struct{ Payload SnapshotPayload }

// WSDeltaMsg delivers an incremental run update. Gap is set when messages
// were missed since the previous one.
type WSDeltaMsg struct {
	Payload session.Delta
	Gap     bool
}

// WSAchievementMsg is sent when an achievement unlocks.
type WSAchievementMsg struct{ Payload AchievementUnlockedPayload }

// WSErrorMsg wraps a daemon-side error.
type WSErrorMsg struct{ Payload ErrorPayload }

// Listen returns a Bubble Tea command that dials the daemon. A failed dial
// reports WSRetryMsg after waiting out the backoff; the caller re-issues
// Listen with the returned delay doubled.
func (c *WSClient) Listen(ctx context.Context, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		if delay <= 0 {
			delay = reconnectBaseDelay
		}

		var header http.Header
		if c.token != "" {
			header = http.Header{"X-Runtrace-Token": []string{c.token}}
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			return WSRetryMsg{Err: err, Delay: NextDelay(delay)}
		}

		c.mu.Lock()
		if c.pingCtx != nil {
			c.pingCtx()
		}
		pingCtx, pingCancel := context.WithCancel(ctx)
		c.conn = conn
		c.seq = 0
		c.pingCtx = pingCancel
		c.mu.Unlock()

		go c.pingLoop(pingCtx, conn)

		return WSConnectedMsg{}
	}
}

// NextDelay doubles a reconnect delay up to the maximum.
func NextDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return reconnectBaseDelay
	}
	return min(d*2, reconnectMaxDelay)
}

// ReadLoop returns a Bubble Tea command that reads the next message from
// the connection. It should be re-issued after each message it returns.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return WSDisconnectedMsg{Err: err}
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}

			c.mu.Lock()
			gap := c.seq != 0 && msg.Seq > c.seq+1
			c.seq = msg.Seq
			c.mu.Unlock()

			if teaMsg := dispatch(msg, gap); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// Close drops the current connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func dispatch(msg WSMessage, gap bool) tea.Msg {
	switch msg.Type {
	case MsgSnapshot:
		var p SnapshotPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSSnapshotMsg{Payload: p}
		}
	case MsgDelta:
		var p session.Delta
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSDeltaMsg{Payload: p, Gap: gap}
		}
	case MsgAchievementUnlocked:
		var p AchievementUnlockedPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSAchievementMsg{Payload: p}
		}
	case MsgError:
		var p ErrorPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSErrorMsg{Payload: p}
		}
	}
	return nil
}
