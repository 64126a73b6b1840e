package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type readinessCheck struct {
	ID     string `json:"id"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// @Summary      Readiness
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /readyz [get]
func (s *Server) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	checks := []readinessCheck{}
	ready := true

	dbCheck := readinessCheck{ID: "database", Ready: true}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		dbCheck.Ready = false
		dbCheck.Detail = err.Error()
		ready = false
	}
	checks = append(checks, dbCheck)

	// The snapshot store only exposes Ping when backed by redis.
	if pinger, ok := s.snapshots.(interface{ Ping(context.Context) error }); ok {
		redisCheck := readinessCheck{ID: "redis", Ready: true}
		if err := pinger.Ping(ctx); err != nil {
			redisCheck.Ready = false
			redisCheck.Detail = err.Error()
			ready = false
		}
		checks = append(checks, redisCheck)
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
