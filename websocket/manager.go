package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"virasocial/engage"
	"virasocial/models"
)

// Manager owns the live comment streams. A connected client subscribes
// to post ids; each subscription is a live query against the comment
// store, and every change pushes the full comment list for that post
// down the socket.
type Manager struct {
	engine  *engage.Engine
	clients map[*Client]bool
	mu      sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager

	mu      sync.Mutex
	streams map[string]*engage.CommentStream
}

func NewManager(engine *engage.Engine) *Manager {
	return &Manager{
		engine:  engine,
		clients: make(map[*Client]bool),
	}
}

func (m *Manager) register(client *Client) {
	m.mu.Lock()
	m.clients[client] = true
	total := len(m.clients)
	m.mu.Unlock()
	log.Printf("✅ WebSocket client registered. Total clients: %d", total)
}

func (m *Manager) unregister(client *Client) {
	// stop the stream forwarders before the send channel closes
	client.closeAllStreams()

	m.mu.Lock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
	}
	total := len(m.clients)
	m.mu.Unlock()
	log.Printf("❌ WebSocket client unregistered. Total clients: %d", total)
}

func (m *Manager) ConnectedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades the connection. Runs behind the JWT middleware, so
// userId is already on the gin context (websockets pass the token as a
// query parameter).
func Handler(manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userId")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, 256),
			manager: manager,
			streams: make(map[string]*engage.CommentStream),
		}

		manager.register(client)

		client.enqueue(map[string]interface{}{
			"type": "connected",
			"payload": map[string]interface{}{
				"userId": userID,
				"time":   time.Now().Unix(),
			},
		})

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			break
		}

		var data struct {
			Type    string `json:"type"`
			Payload struct {
				PostID string `json:"postId"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(message, &data); err != nil {
			log.Printf("❌ WebSocket message unmarshal error: %v", err)
			continue
		}

		switch data.Type {
		case "subscribe_comments":
			c.handleSubscribe(data.Payload.PostID)
		case "unsubscribe_comments":
			c.handleUnsubscribe(data.Payload.PostID)
		case "ping":
			c.enqueue(map[string]interface{}{
				"type":    "pong",
				"payload": map[string]interface{}{"time": time.Now().Unix()},
			})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSubscribe opens a live comment query for the post and forwards
// every snapshot. Subscribing twice to the same post is a no-op.
func (c *Client) handleSubscribe(postID string) {
	if postID == "" {
		return
	}

	c.mu.Lock()
	if _, exists := c.streams[postID]; exists {
		c.mu.Unlock()
		return
	}

	stream, err := c.manager.engine.WatchComments(context.Background(), postID)
	if err != nil {
		c.mu.Unlock()
		log.Printf("❌ Comment stream failed for post %s: %v", postID, err)
		c.enqueue(map[string]interface{}{
			"type":    "error",
			"payload": map[string]interface{}{"postId": postID, "message": "Failed to watch comments"},
		})
		return
	}
	c.streams[postID] = stream
	c.mu.Unlock()

	go c.forward(postID, stream)

	c.enqueue(map[string]interface{}{
		"type":    "comments_subscribed",
		"payload": map[string]interface{}{"postId": postID, "userId": c.userID},
	})
}

func (c *Client) handleUnsubscribe(postID string) {
	c.mu.Lock()
	stream, ok := c.streams[postID]
	if ok {
		delete(c.streams, postID)
	}
	c.mu.Unlock()

	if ok {
		stream.Close()
	}
}

// forward pushes comment snapshots until the stream closes.
func (c *Client) forward(postID string, stream *engage.CommentStream) {
	for snapshot := range stream.Snapshots() {
		if snapshot == nil {
			snapshot = []models.Comment{}
		}
		c.enqueue(map[string]interface{}{
			"type": "comments",
			"payload": map[string]interface{}{
				"postId":   postID,
				"comments": snapshot,
			},
		})
	}
}

func (c *Client) closeAllStreams() {
	c.mu.Lock()
	streams := c.streams
	c.streams = make(map[string]*engage.CommentStream)
	c.mu.Unlock()

	for _, stream := range streams {
		stream.Close()
	}
}

func (c *Client) enqueue(data map[string]interface{}) {
	msg, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Error marshaling WebSocket message: %v", err)
		return
	}

	defer func() {
		// send may be closed by unregister while we enqueue
		recover()
	}()
	select {
	case c.send <- msg:
	default:
		// slow client, drop the frame
	}
}
