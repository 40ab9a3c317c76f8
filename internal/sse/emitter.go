package sse

import (
	"context"
	"sync"
)

const AdminTopic = "admin"

// CrowdTopic is the per-temple topic crowd updates are emitted on.
func CrowdTopic(templeID string) string {
	return "crowd:" + templeID
}

// Message is one server-sent event.
type Message struct {
	Event string
	Data  interface{}
}

// Emitter fans messages out to SSE clients subscribed by topic.
type Emitter struct {
	mu      sync.RWMutex
	clients map[string][]chan Message
}

func NewEmitter() *Emitter {
	return &Emitter{clients: make(map[string][]chan Message)}
}

// Subscribe registers a client on topic until ctx is done; the channel is then closed.
func (e *Emitter) Subscribe(ctx context.Context, topic string) <-chan Message {
	ch := make(chan Message, 10)

	e.mu.Lock()
	e.clients[topic] = append(e.clients[topic], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(topic, ch)
	}()
	return ch
}

// Emit never blocks: a client whose buffer is full misses the message.
func (e *Emitter) Emit(topic string, msg Message) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.clients[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (e *Emitter) EmitAdmin(event string, data interface{}) {
	e.Emit(AdminTopic, Message{Event: event, Data: data})
}

func (e *Emitter) EmitCrowd(templeID string, data interface{}) {
	e.Emit(CrowdTopic(templeID), Message{Event: "crowd-updated", Data: data})
}

func (e *Emitter) remove(topic string, ch chan Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[topic]
	for i, c := range clients {
		if c == ch {
			e.clients[topic] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[topic]) == 0 {
		delete(e.clients, topic)
	}
}

func (e *Emitter) ClientCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[topic])
}
