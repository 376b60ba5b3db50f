package events

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Type identifies what happened to an article.
type Type string

const (
	TypeArticleSaved     Type = "article.saved"
	TypeArticlePublished Type = "article.published"
	TypeArticleDeleted   Type = "article.deleted"
)

// Event is broadcast to every WebSocket subscriber when an article changes.
type Event struct {
	Type      Type      `json:"type"`
	ArticleID int64     `json:"article_id"`
	Slug      string    `json:"slug,omitempty"`
	Title     string    `json:"title,omitempty"`
	At        time.Time `json:"at"`
}

const (
	// sendBuffer is how many events a subscriber may fall behind
	// before it is dropped.
	sendBuffer = 16
	// writeWait bounds a single WebSocket write.
	writeWait = 10 * time.Second
)

// Hub fans article events out to connected WebSocket clients. Each
// subscriber gets a buffered channel drained by its own writer
// goroutine, so a slow connection never stalls publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*websocket.Conn]chan Event)}
}

// Publish queues the event for all subscribers without blocking. A
// subscriber whose buffer is full is dropped.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("events: dropping slow subscriber")
			delete(h.subs, conn)
			close(ch)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) add(conn *websocket.Conn) {
	ch := make(chan Event, sendBuffer)
	h.mu.Lock()
	h.subs[conn] = ch
	h.mu.Unlock()
	go h.writer(conn, ch)
}

// remove is idempotent; the writer and the read loop may both call it.
func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.subs[conn]
	if ok {
		delete(h.subs, conn)
		close(ch)
	}
	h.mu.Unlock()
}

// writer drains one subscriber's queue onto its connection. It owns all
// writes to conn and closes it when the queue is closed or a write
// fails.
func (h *Hub) writer(conn *websocket.Conn, ch chan Event) {
	defer conn.Close()
	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("events: dropping subscriber: %v", err)
			h.remove(conn)
			return
		}
	}
}
