package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/agripulse/agri_go_server/internal/pkg/queue"
)

type HealthHandler struct {
	db       *gorm.DB
	rdb      *redis.Client
	jobQueue *queue.Queue
}

// NewHealthHandler jobQueue 可为 nil，此时不返回积压数
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, jobQueue *queue.Queue) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, jobQueue: jobQueue}
}

// Check GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "disabled"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		healthy = false
	}

	if h.rdb != nil {
		checks["redis"] = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		} else if h.jobQueue != nil {
			if backlog, err := h.jobQueue.Length(ctx); err == nil {
				checks["job_backlog"] = backlog
			}
		}
	}

	status := http.StatusOK
	checks["status"] = "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		checks["status"] = "degraded"
	}
	checks["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	c.JSON(status, checks)
}
