package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GetPrometheusMetrics serves the default prometheus registry
func (h *Handler) GetPrometheusMetrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
