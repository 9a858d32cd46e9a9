package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/service"
)

// WebSocketController upgrades dashboard clients onto the event hub.
type WebSocketController struct {
	wsService *service.WebSocketService
}

func NewWebSocketController(g *gin.RouterGroup, wsService *service.WebSocketService) *WebSocketController {
	w := &WebSocketController{
		wsService: wsService,
	}
	w.initRouter(g)
	return w
}

func (w *WebSocketController) initRouter(g *gin.RouterGroup) {
	g.GET("/ws", w.handleWebSocket)
}

func (w *WebSocketController) handleWebSocket(c *gin.Context) {
	if err := w.wsService.Upgrade(c.Writer, c.Request); err != nil {
		logger.Debug("websocket upgrade failed:", err)
	}
}
