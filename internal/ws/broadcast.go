package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/runtrace/runtrace/internal/records"
	"github.com/runtrace/runtrace/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// Snapshotter supplies the current run. *tracker.Tracker implements it.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster fans run updates out to WebSocket clients. Deltas queued
// within one throttle window are merged into a single message; when they
// cannot be merged the window is flushed as a fresh snapshot instead.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int

	source   Snapshotter
	throttle time.Duration
	seq      atomic.Uint64

	// sendMu orders sequence numbers with delivery: whoever holds it
	// encodes and fans out before the next message is numbered.
	sendMu sync.Mutex

	snapshotTicker *time.Ticker
	done           chan struct{}
	stopOnce       sync.Once

	flushMu      sync.Mutex
	pendingSnap  *session.Snapshot
	pendingDelta *session.Delta
	needFresh    bool
	flushTimer   *time.Timer
}

// NewBroadcaster starts the periodic snapshot loop. maxConns <= 0 means no
// connection limit.
func NewBroadcaster(source Snapshotter, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		source:   source,
		throttle: throttle,
		done:     make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// Stop ends the snapshot loop and disconnects every client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			close(c.send)
		}
		b.mu.Unlock()
	})
}

// AddClient registers conn and sends it the current run.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	if b.source != nil {
		data, err := b.encode(MsgSnapshot, newSnapshotPayload(b.source.Snapshot()), false)
		if err == nil {
			b.trySend(c, data)
		}
	}

	return c, nil
}

// RemoveClient unregisters c. Safe to call more than once.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// QueueSnapshot replaces whatever is pending with snap.
func (b *Broadcaster) QueueSnapshot(snap session.Snapshot) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingSnap = &snap
	b.pendingDelta = nil
	b.needFresh = false
	b.scheduleLocked()
}

// QueueDelta merges d into the pending update.
func (b *Broadcaster) QueueDelta(d session.Delta) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	switch {
	case b.needFresh:
	case b.pendingSnap != nil:
		next, ok := b.pendingSnap.Apply(d)
		if ok {
			b.pendingSnap = &next
		} else {
			b.pendingSnap = nil
			b.needFresh = true
		}
	case b.pendingDelta != nil:
		merged, ok := b.pendingDelta.Merge(d)
		if ok {
			b.pendingDelta = &merged
		} else {
			b.pendingDelta = nil
			b.needFresh = true
		}
	default:
		b.pendingDelta = &d
	}
	b.scheduleLocked()
}

// QueueError tells every client about a failure the run itself does not
// carry, such as a start that could not subscribe to the feed.
func (b *Broadcaster) QueueError(msg string) {
	b.broadcast(MsgError, ErrorPayload{Message: msg})
}

// QueueAchievement announces a newly unlocked achievement.
func (b *Broadcaster) QueueAchievement(a records.Achievement) {
	b.broadcast(MsgAchievementUnlocked, newAchievementPayload(a))
}

func (b *Broadcaster) scheduleLocked() {
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.flushMu.Lock()
	snap := b.pendingSnap
	delta := b.pendingDelta
	fresh := b.needFresh
	b.pendingSnap = nil
	b.pendingDelta = nil
	b.needFresh = false
	b.flushTimer = nil
	b.flushMu.Unlock()

	switch {
	case fresh && b.source != nil:
		b.broadcastLocked(MsgSnapshot, newSnapshotPayload(b.source.Snapshot()))
	case snap != nil:
		b.broadcastLocked(MsgSnapshot, newSnapshotPayload(*snap))
	case delta != nil:
		b.broadcastLocked(MsgDelta, *delta)
	}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			if b.source == nil || b.ClientCount() == 0 {
				continue
			}
			b.sendMu.Lock()
			b.broadcastLocked(MsgSnapshot, newSnapshotPayload(b.source.Snapshot()))
			b.sendMu.Unlock()
		}
	}
}

// encode marshals a message. next reserves a new sequence number; the
// connect-time snapshot reuses the current one.
func (b *Broadcaster) encode(t MessageType, payload interface{}, next bool) ([]byte, error) {
	seq := b.seq.Load()
	if next {
		seq = b.seq.Add(1)
	}
	return json.Marshal(WSMessage{Type: t, Seq: seq, Payload: payload})
}

func (b *Broadcaster) broadcast(t MessageType, payload interface{}) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	b.broadcastLocked(t, payload)
}

// broadcastLocked numbers and fans out one message. Callers hold sendMu.
func (b *Broadcaster) broadcastLocked(t MessageType, payload interface{}) {
	data, err := b.encode(t, payload, true)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		b.trySend(c, data)
	}
}

// trySend queues data for c, dropping the client when its buffer is full.
// The read lock keeps RemoveClient from closing c.send mid-send.
func (b *Broadcaster) trySend(c *client, data []byte) {
	b.mu.RLock()
	if !b.clients[c] {
		b.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		b.mu.RUnlock()
	default:
		b.mu.RUnlock()
		log.Printf("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}
