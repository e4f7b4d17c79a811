package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sensorlog/internal/logger"
)

const writeWait = 10 * time.Second

// HubService fans messages out to connected live viewers. All socket writes
// happen on the Run goroutine.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger

	// last is replayed to each new client so it starts with current state.
	last []byte
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			h.logger.Info("Live hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)
			if h.last != nil {
				h.send(client, h.last)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.last = message
			h.mutex.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()
			for _, client := range clients {
				h.send(client, message)
			}
		}
	}
}

// send writes one message, dropping the client on failure. Called from Run.
func (h *HubService) send(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending message: %v", err)
		h.mutex.Lock()
		delete(h.clients, client)
		h.mutex.Unlock()
		client.Close()
	}
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every client. It returns false once the hub
// has stopped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.done:
		return false
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
