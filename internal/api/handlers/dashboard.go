package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/errors"
)

// DashboardWebSocket streams the live call list and every lifecycle
// transition to an authenticated console.
func (h *Handler) DashboardWebSocket(c *gin.Context) {
	if h.deps.Hub == nil {
		errors.ServiceUnavailable(c, "dashboard is not enabled")
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin:     h.allowedOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Dashboard upgrade failed", zap.Error(err))
		return
	}
	h.logger.Info("Dashboard connected", zap.String("subject", c.GetString("subject")))
	h.deps.Hub.Serve(h.deps.Context, ws)
}

// allowedOrigin applies CORS_ALLOWED_ORIGINS to browser websockets
func (h *Handler) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := strings.TrimSpace(h.cfg.CORSAllowedOrigins)
	if origin == "" || allowed == "" || allowed == "*" {
		return true
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}
