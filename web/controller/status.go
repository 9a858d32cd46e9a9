package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/service"
)

// StatusController serves the live system snapshot, buffered charts and
// the in-memory log ring.
type StatusController struct {
	statusService    *service.StatusService
	telemetryService *service.TelemetryService
}

func NewStatusController(g *gin.RouterGroup, statusService *service.StatusService, telemetryService *service.TelemetryService) *StatusController {
	a := &StatusController{
		statusService:    statusService,
		telemetryService: telemetryService,
	}
	a.initRouter(g)
	return a
}

func (a *StatusController) initRouter(g *gin.RouterGroup) {
	g.GET("/status", a.status)
	g.GET("/logs", a.logs)
	g.GET("/chart/:signal", a.chart)
}

func (a *StatusController) status(c *gin.Context) {
	jsonObj(c, a.statusService.GetStatus(), nil)
}

func (a *StatusController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "500"))
	if err != nil || count < 1 {
		count = 500
	}
	level := c.DefaultQuery("level", "info")
	jsonObj(c, logger.GetLogs(count, level), nil)
}

func (a *StatusController) chart(c *gin.Context) {
	signal := strings.ToUpper(c.Param("signal"))
	if !service.ValidSignal(signal) {
		pureJsonMsg(c, http.StatusBadRequest, false, "unknown signal "+signal)
		return
	}
	jsonObj(c, a.telemetryService.ChartData(signal), nil)
}
