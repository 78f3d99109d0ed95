package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stat-watcher/internal/auth"
	"stat-watcher/internal/middleware"
)

// AuthHandler issues viewer session tokens. This is the bootstrap scheme of
// a single-operator deployment: whoever holds the master secret can mint a
// session for any user id. Machine tokens are unrelated opaque secrets
// created alongside the machine record.
type AuthHandler struct {
	TokenConfig  auth.TokenConfig
	MasterSecret string
	Limiter      *middleware.RateLimiter
	Logger       zerolog.Logger
}

type tokenRequestBody struct {
	UserID string `json:"userId"`
	Secret string `json:"secret"`
}

func (h *AuthHandler) Token(c *gin.Context) {
	if h.Limiter != nil && !h.Limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var body tokenRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.Secret), []byte(h.MasterSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	token, err := auth.CreateToken(body.UserID, h.TokenConfig)
	if err != nil {
		h.Logger.Error().Err(err).Msg("session token creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
