package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stat-watcher/internal/auth"
	"stat-watcher/internal/middleware"
	"stat-watcher/internal/statscache"
	"stat-watcher/internal/store"
)

// onlineWindow is how recently an agent must have pushed for its machine to
// count as online in list/detail responses.
const onlineWindow = 10 * time.Second

type MachineHandler struct {
	Store  *store.Store
	Cache  *statscache.Cache
	Logger zerolog.Logger
}

type machineNameBody struct {
	Name string `json:"name"`
}

func (h *MachineHandler) machineResponse(id, name string, lastSeen, createdAt, updatedAt, nowMillis int64) gin.H {
	isOnline := lastSeen > 0 && nowMillis-lastSeen < onlineWindow.Milliseconds()
	return gin.H{
		"id":        id,
		"name":      name,
		"lastSeen":  lastSeen,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"isOnline":  isOnline,
	}
}

func (h *MachineHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	now := time.Now().UnixMilli()
	machines := h.Store.ListMachines(userID)
	resp := make([]gin.H, 0, len(machines))
	for _, m := range machines {
		resp = append(resp, h.machineResponse(m.ID, m.Name, m.LastSeen, m.CreatedAt, m.UpdatedAt, now))
	}
	c.JSON(http.StatusOK, gin.H{"machines": resp})
}

func (h *MachineHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body machineNameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Machine name is required"})
		return
	}

	token, err := auth.NewMachineToken()
	if err != nil {
		h.Logger.Error().Err(err).Msg("machine token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	now := time.Now().UnixMilli()
	m, err := h.Store.CreateMachine(userID, body.Name, token, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the token is returned once, at creation; it is never listed again
	c.JSON(http.StatusOK, gin.H{
		"machine": h.machineResponse(m.ID, m.Name, m.LastSeen, m.CreatedAt, m.UpdatedAt, now),
		"token":   token,
	})
}

// Get returns the machine plus its current stats: the live cache entry when
// one exists, otherwise the newest persisted snapshot.
func (h *MachineHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	machineID := c.Param("id")
	m, ok := h.Store.GetMachine(userID, machineID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}

	var stats any
	var lastUpdated any
	if cached, at, ok := h.Cache.Get(machineID); ok {
		stats = cached
		lastUpdated = at.UnixMilli()
	} else if rec, ok := h.Store.LatestSnapshot(machineID); ok {
		stats = rec.Data
		lastUpdated = rec.CreatedAt
	}

	now := time.Now().UnixMilli()
	c.JSON(http.StatusOK, gin.H{
		"machine":     h.machineResponse(m.ID, m.Name, m.LastSeen, m.CreatedAt, m.UpdatedAt, now),
		"stats":       stats,
		"lastUpdated": lastUpdated,
	})
}

func (h *MachineHandler) Rename(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body machineNameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Machine name is required"})
		return
	}

	now := time.Now().UnixMilli()
	m, err := h.Store.RenameMachine(userID, c.Param("id"), body.Name, now)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"machine": h.machineResponse(m.ID, m.Name, m.LastSeen, m.CreatedAt, m.UpdatedAt, now),
	})
}

// Delete removes the machine record, its snapshot trail, and the live cache
// entry (dropping every stream listener with it).
func (h *MachineHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	machineID := c.Param("id")
	if !h.Store.DeleteMachine(userID, machineID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}
	h.Cache.Remove(machineID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
