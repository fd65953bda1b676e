package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/response"
)

// SystemHandler reports daemon health.
type SystemHandler struct {
	registry    *attempt.Registry
	storeDriver string
	startTime   time.Time
}

func NewSystemHandler(registry *attempt.Registry, storeDriver string) *SystemHandler {
	return &SystemHandler{
		registry:    registry,
		storeDriver: storeDriver,
		startTime:   time.Now(),
	}
}

type healthStatus struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	OpenAttempts int    `json:"open_attempts"`
	StoreDriver  string `json:"store_driver"`
	Goroutines   int    `json:"goroutines"`
	GoVersion    string `json:"go_version"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, healthStatus{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		OpenAttempts: h.registry.Len(),
		StoreDriver:  h.storeDriver,
		Goroutines:   runtime.NumGoroutine(),
		GoVersion:    runtime.Version(),
	})
}
