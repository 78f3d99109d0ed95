package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stat-watcher/internal/hub"
	"stat-watcher/internal/statscache"
	"stat-watcher/internal/store"
)

// IngestHandler receives stats pushes from agents. Each push authenticates
// by the machine's bearer token, lands in the durable trail, updates the
// live cache (fanning out to stream subscribers) and is broadcast to the
// owner's dashboard sockets.
type IngestHandler struct {
	Store  *store.Store
	Cache  *statscache.Cache
	Hub    *hub.Hub
	Logger zerolog.Logger
}

type ingestBody struct {
	Data json.RawMessage `json:"data"`
}

// dashboardUpdate is the websocket feed frame produced on every ingest.
type dashboardUpdate struct {
	Type  string              `json:"type"`
	Event string              `json:"event"`
	Body  dashboardUpdateBody `json:"body"`
}

type dashboardUpdateBody struct {
	MachineID string          `json:"machineId"`
	Stats     json.RawMessage `json:"stats"`
	UpdatedAt int64           `json:"updatedAt"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid authorization header"})
		return
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	machine, ok := h.Store.GetMachineByToken(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	var body ingestBody
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing data field"})
		return
	}

	now := time.Now().UnixMilli()

	// Durability is best-effort relative to the live view: a failed
	// last-seen touch or trail append is logged and the ingest proceeds.
	if err := h.Store.TouchMachine(machine.ID, now); err != nil {
		h.Logger.Warn().Str("machine", machine.ID).Err(err).Msg("last-seen update failed")
	}
	if _, err := h.Store.AppendSnapshot(machine.ID, body.Data, now); err != nil {
		h.Logger.Warn().Str("machine", machine.ID).Err(err).Msg("snapshot append failed")
	}

	updatedAt := h.Cache.Upsert(machine.ID, body.Data)

	if h.Hub != nil {
		frame, err := json.Marshal(dashboardUpdate{
			Type:  "update",
			Event: "stats",
			Body: dashboardUpdateBody{
				MachineID: machine.ID,
				Stats:     body.Data,
				UpdatedAt: updatedAt.UnixMilli(),
			},
		})
		if err == nil {
			h.Hub.Broadcast(machine.UserID, frame)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
