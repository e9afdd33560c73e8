package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JaimeRamones/prodflow/internal/utils"
)

var startTime = time.Now()

// Pinger is anything with a liveness check (database, redis).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// QueueDepther reports how many page jobs are waiting.
type QueueDepther interface {
	Len(ctx context.Context) (int64, error)
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    Pinger
	redis Pinger
	pages QueueDepther
}

// NewHealthHandler creates a new HealthHandler. pages may be nil.
func NewHealthHandler(db, redis Pinger, pages QueueDepther) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, pages: pages}
}

// GetHealth responds with service, database and redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := pingStatus(ctx, h.db)
	redisStatus := pingStatus(ctx, h.redis)

	data := gin.H{
		"status":   "healthy",
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": gin.H{"status": dbStatus},
		"redis":    gin.H{"status": redisStatus},
	}
	if h.pages != nil {
		if depth, err := h.pages.Len(ctx); err == nil {
			data["pageQueue"] = gin.H{"depth": depth}
		}
	}
	if dbStatus != "connected" || redisStatus != "connected" {
		data["status"] = "degraded"
		utils.ErrorWithData(c, http.StatusServiceUnavailable, "DEGRADED", "Service is degraded", data)
		return
	}
	utils.Success(c, http.StatusOK, "Service is healthy", data)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.PingContext(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
