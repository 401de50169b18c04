package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// StatusEvent is one message of the status stream. Log lines carry Msg;
// sequencer changes carry State and Program with level "state".
type StatusEvent struct {
	Time    string `json:"t"`
	Level   string `json:"l,omitempty"`
	Msg     string `json:"msg,omitempty"`
	State   string `json:"state,omitempty"`
	Program string `json:"program,omitempty"`
}

// subscriberBuffer is the number of events a slow client may lag behind.
const subscriberBuffer = 64

// StatusBroadcaster fans status events out to SSE and websocket clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	now     func() time.Time
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
}

// Subscribe returns a channel of JSON-encoded events and a cleanup function.
// The caller must call the cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish stamps evt and sends it to every subscriber. Slow clients miss
// events instead of blocking the robot.
func (b *StatusBroadcaster) Publish(evt StatusEvent) {
	if evt.Time == "" {
		evt.Time = b.now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Broadcast sends a log message: {"t":"...","l":"info","msg":"..."}.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.Publish(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastState sends a sequencer state change.
func (b *StatusBroadcaster) BroadcastState(state, program string) {
	b.Publish(StatusEvent{Level: "state", State: state, Program: program})
}

// BroadcastWriter returns an io.Writer that broadcasts each non-empty line,
// for teeing the debug log into the status stream.
func BroadcastWriter(b *StatusBroadcaster) io.Writer {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.BroadcastMsg(msg)
		}
	}
	return len(p), nil
}
