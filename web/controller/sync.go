package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/entity"
	"github.com/vitalink-io/vitalink/web/service"
)

// SyncController serves the replication endpoint. Token checking happens
// in middleware before these handlers run, so an unauthenticated push is
// rejected before its body is ever decoded.
type SyncController struct {
	syncService *service.SyncService
}

func NewSyncController(g *gin.RouterGroup, syncService *service.SyncService) *SyncController {
	a := &SyncController{syncService: syncService}
	a.initRouter(g)
	return a
}

func (a *SyncController) initRouter(g *gin.RouterGroup) {
	g.GET("", a.pullUsers)
	g.POST("", a.pushUsers)
}

// pullUsers hands the peer a full snapshot of the user table.
func (a *SyncController) pullUsers(c *gin.Context) {
	users, err := a.syncService.FetchAll()
	if err != nil {
		logger.Warning("sync pull failed:", err)
		c.JSON(http.StatusInternalServerError, entity.Msg{Msg: err.Error()})
		return
	}

	logger.Debugf("sync: served %d users to %s", len(users), getRemoteIp(c))
	c.JSON(http.StatusOK, dbsync.PullResponse{
		Success:   true,
		Users:     users,
		Count:     len(users),
		Timestamp: model.NowStamp(),
	})
}

// pushUsers merges a snapshot sent by the peer. The body is decoded in
// full before any record is touched, so a truncated upload never applies
// half a batch.
func (a *SyncController) pushUsers(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.Msg{Msg: err.Error()})
		return
	}

	var req dbsync.PushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, entity.Msg{Msg: "malformed sync payload"})
		return
	}
	if len(req.Users) == 0 {
		c.JSON(http.StatusBadRequest, entity.Msg{Msg: "no users provided"})
		return
	}

	report, err := a.syncService.ApplyBatch(req.Users)
	if err != nil {
		logger.Warning("sync merge failed:", err)
		c.JSON(http.StatusInternalServerError, entity.Msg{Msg: err.Error()})
		return
	}

	logger.Infof("sync: merged snapshot from %s (updated=%d inserted=%d conflicts=%d)",
		getRemoteIp(c), report.Updated, report.Inserted, len(report.Conflicts))
	c.JSON(http.StatusOK, report)
}
