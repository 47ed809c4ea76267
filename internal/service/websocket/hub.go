package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"citymonitor/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// AlertsTopic carries alert list change notifications.
	AlertsTopic = "alerts"
	// FramesTopic prefixes every per-camera frame topic.
	FramesTopic = "frames/"

	broadcastBuffer = 64
)

// FrameTopic is the topic of one camera's annotated frames. An empty
// camera selects all cameras.
func FrameTopic(camera string) string {
	return FramesTopic + camera
}

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	conn  Conn
	topic string
}

// request is a registration change; done is closed once Run applied it.
type request struct {
	client *client
	done   chan struct{}
}

// matches reports whether a client subscribed to c.topic should get a
// message on topic. A topic ending in "/" matches everything under it.
func (c *client) matches(topic string) bool {
	if c.topic == topic {
		return true
	}
	return strings.HasSuffix(c.topic, "/") && strings.HasPrefix(topic, c.topic)
}

type message struct {
	topic   string
	payload []byte
}

// HubService fans messages out to subscribed WebSocket clients. All
// client bookkeeping happens on the Run goroutine.
type HubService struct {
	clients    map[*client]bool
	broadcast  chan message
	register   chan request
	unregister chan request
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan request),
		unregister: make(chan request),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection.
func (h *HubService) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return nil

		case req := <-h.register:
			h.mutex.Lock()
			h.clients[req.client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			close(req.done)
			h.logger.Info("Client subscribed to %s. Total: %d", req.client.topic, total)

		case req := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[req.client]; ok {
				delete(h.clients, req.client)
				req.client.conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			close(req.done)
			h.logger.Info("Client unsubscribed from %s. Total: %d", req.client.topic, total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if !c.matches(msg.topic) {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, c)
					c.conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Subscription is a live client registration. Close is idempotent and
// also closes the connection.
type Subscription struct {
	hub    *HubService
	client *client
	once   sync.Once
}

// Subscribe registers conn for topic and returns once messages on topic
// will reach it. It returns nil once the hub has stopped.
func (h *HubService) Subscribe(conn Conn, topic string) *Subscription {
	c := &client{conn: conn, topic: topic}
	if !h.apply(h.register, c) {
		conn.Close()
		return nil
	}
	return &Subscription{hub: h, client: c}
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.apply(s.hub.unregister, s.client)
	})
}

// apply hands c to Run and waits until it has been processed. It reports
// false when the hub is no longer running.
func (h *HubService) apply(ch chan<- request, c *client) bool {
	req := request{client: c, done: make(chan struct{})}
	select {
	case ch <- req:
	case <-h.done:
		return false
	}
	<-req.done
	return true
}

// Publish queues payload for every client subscribed to topic. When the
// queue is full the message is dropped rather than stalling the caller.
func (h *HubService) Publish(topic string, payload []byte) bool {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
		return true
	default:
		h.logger.Warning("Broadcast queue full, dropping message for %s", topic)
		return false
	}
}

// PublishJSON marshals v and publishes it on topic.
func (h *HubService) PublishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(topic, payload)
	return nil
}

// ClientCount returns how many clients would receive a message on topic.
func (h *HubService) ClientCount(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n := 0
	for c := range h.clients {
		if c.matches(topic) {
			n++
		}
	}
	return n
}
