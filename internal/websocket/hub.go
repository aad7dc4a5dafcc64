package websocket

import (
	"context"
	"sync"

	"ai-tutoring-engine/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Hub fans state snapshots out to every connected UI client.
type Hub struct {
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// last is replayed to clients that join late.
	last []byte

	// done is closed when Run returns.
	done chan struct{}

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.last != nil {
				client.Send <- h.last
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.Id})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.Id})
			}
			h.mu.Unlock()
		}
	}
}

// Consume forwards every message published on topic to the clients.
func (h *Hub) Consume(ctx context.Context, sub message.Subscriber, topic string) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			h.Broadcast(msg.Payload)
			msg.Ack()
		}
	}()
	return nil
}

// Broadcast sends data to all connected clients. Clients whose buffer is
// full are dropped.
func (h *Hub) Broadcast(data []byte) {
	var slow []*Client

	h.mu.Lock()
	h.last = data
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.Unlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"client_id": client.Id})
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
