package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stat-watcher/internal/auth"
	"stat-watcher/internal/statscache"
	"stat-watcher/internal/store"
)

const defaultHeartbeatInterval = 30 * time.Second

// updateBuffer is the per-subscriber channel depth. Updates beyond it are
// dropped rather than blocking the ingest path; the stream is a live view,
// not a replay log.
const updateBuffer = 16

var errSubscriberLagging = errors.New("subscriber buffer full")

// chanSink feeds cache notifications into the stream goroutine without ever
// blocking the notifier.
type chanSink struct {
	updates chan json.RawMessage
}

func (s *chanSink) Push(stats json.RawMessage) error {
	select {
	case s.updates <- stats:
		return nil
	default:
		return errSubscriberLagging
	}
}

// StreamHandler serves the per-machine SSE stream: a connected event, the
// current snapshot (live cache or persisted fallback), then every update as
// it is ingested, with comment heartbeats to keep intermediaries from
// closing the connection.
type StreamHandler struct {
	Store       *store.Store
	Cache       *statscache.Cache
	TokenConfig auth.TokenConfig
	Logger      zerolog.Logger

	// Heartbeat overrides the 30s keepalive interval; tests shorten it.
	Heartbeat time.Duration
}

func (h *StreamHandler) heartbeatInterval() time.Duration {
	if h.Heartbeat > 0 {
		return h.Heartbeat
	}
	return defaultHeartbeatInterval
}

// sessionToken pulls the viewer's session token from the Authorization
// header or, because EventSource cannot set headers, the token query
// parameter.
func sessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

func (h *StreamHandler) Serve(c *gin.Context) {
	claims, err := auth.VerifyToken(sessionToken(c), h.TokenConfig)
	if err != nil {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	machineID := c.Param("id")
	if _, ok := h.Store.GetMachine(claims.UserID, machineID); !ok {
		// wrong owner and unknown id answer alike
		c.String(http.StatusNotFound, "Machine not found")
		return
	}

	w := c.Writer
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connected, _ := json.Marshal(gin.H{"machineId": machineID})
	if _, err := fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected); err != nil {
		return
	}
	flusher.Flush()

	// Registration and the initial read happen in one critical section so
	// no ingest can land between them unseen.
	sink := &chanSink{updates: make(chan json.RawMessage, updateBuffer)}
	sub, current, _, haveCurrent := h.Cache.SubscribeWithSnapshot(machineID, sink)
	defer h.Cache.Unsubscribe(sub)

	if !haveCurrent {
		if rec, ok := h.Store.LatestSnapshot(machineID); ok {
			current = rec.Data
			haveCurrent = true
		}
	}
	if haveCurrent {
		if _, err := fmt.Fprintf(w, "event: stats\ndata: %s\n\n", current); err != nil {
			return
		}
		flusher.Flush()
	}

	heartbeat := time.NewTicker(h.heartbeatInterval())
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.Logger.Debug().Str("machine", machineID).Msg("stream client disconnected")
			return
		case stats := <-sink.updates:
			if _, err := fmt.Fprintf(w, "event: stats\ndata: %s\n\n", stats); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
