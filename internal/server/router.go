package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stat-watcher/internal/auth"
	"stat-watcher/internal/handler"
	"stat-watcher/internal/hub"
	"stat-watcher/internal/middleware"
	"stat-watcher/internal/statscache"
	"stat-watcher/internal/store"
)

type Deps struct {
	Store        *store.Store
	Cache        *statscache.Cache
	Hub          *hub.Hub
	TokenConfig  auth.TokenConfig
	MasterSecret string
	Logger       zerolog.Logger

	// StreamHeartbeat overrides the SSE keepalive interval; zero keeps the
	// 30s default. Tests shorten it.
	StreamHeartbeat time.Duration
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	ingestHandler := &handler.IngestHandler{
		Store:  deps.Store,
		Cache:  deps.Cache,
		Hub:    deps.Hub,
		Logger: deps.Logger,
	}
	r.POST("/api/v1", ingestHandler.Ingest)

	tokenRequestLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{
		TokenConfig:  deps.TokenConfig,
		MasterSecret: deps.MasterSecret,
		Limiter:      tokenRequestLimiter,
		Logger:       deps.Logger,
	}
	r.POST("/api/auth/token", authHandler.Token)

	machineHandler := &handler.MachineHandler{
		Store:  deps.Store,
		Cache:  deps.Cache,
		Logger: deps.Logger,
	}
	protected := r.Group("/api")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.GET("/machines", machineHandler.List)
	protected.POST("/machines", machineHandler.Create)
	protected.GET("/machines/:id", machineHandler.Get)
	protected.PATCH("/machines/:id", machineHandler.Rename)
	protected.DELETE("/machines/:id", machineHandler.Delete)

	// The stream authenticates inline (EventSource clients pass the session
	// token as a query parameter) and answers auth failures in plain text.
	streamHandler := &handler.StreamHandler{
		Store:       deps.Store,
		Cache:       deps.Cache,
		TokenConfig: deps.TokenConfig,
		Logger:      deps.Logger,
		Heartbeat:   deps.StreamHeartbeat,
	}
	r.GET("/api/machines/:id/stream", streamHandler.Serve)

	wsHandler := &handler.WebSocketHandler{
		Hub:         deps.Hub,
		TokenConfig: deps.TokenConfig,
		Logger:      deps.Logger,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
