// Package hub fans messages out to a user's open dashboard connections.
// Every successful ingest broadcasts the fresh stats to the owner's
// websocket connections so a dashboard can follow a whole fleet over one
// socket.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one live dashboard socket owned by UserID.
type Connection struct {
	UserID string
	Writer Writer
}

type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{conns: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[conn.UserID] == nil {
		h.conns[conn.UserID] = make(map[*Connection]struct{})
	}
	h.conns[conn.UserID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[conn.UserID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, conn.UserID)
	}
}

// Broadcast delivers message to every connection of userID. The set is
// snapshotted before writing so registrations during the write loop never
// disturb it; connections whose write fails are closed and dropped.
func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	set := h.conns[userID]
	targets := make([]*Connection, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dead []*Connection
	for _, c := range targets {
		if err := c.Writer.Write(message); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// ConnectionCount reports how many sockets userID currently has open.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
