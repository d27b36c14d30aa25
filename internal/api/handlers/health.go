package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	LiveCalls int               `json:"live_calls"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{"api": "healthy"}
	for _, d := range h.deps.Dependencies {
		if err := d.Ping(ctx); err != nil {
			services[d.Name] = "unhealthy"
		} else {
			services[d.Name] = "healthy"
		}
	}

	if h.deps.Chat != nil && h.deps.Chat.IsAvailable() {
		services["chat"] = "available"
	} else {
		services["chat"] = "unavailable"
	}
	if h.deps.STT != nil && h.deps.STT.IsAvailable() {
		services["stt"] = "available"
	} else {
		services["stt"] = "unavailable"
	}
	if h.deps.TTS != nil && h.deps.TTS.IsAvailable() {
		services["tts"] = "available"
	} else {
		services["tts"] = "unavailable"
	}

	overallStatus := "healthy"
	for _, status := range services {
		if status == "unhealthy" || status == "unavailable" {
			overallStatus = "degraded"
			break
		}
	}

	live := 0
	if h.deps.Registry != nil {
		live = h.deps.Registry.Len()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
		LiveCalls: live,
	})
}
