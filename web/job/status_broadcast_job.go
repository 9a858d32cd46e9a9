package job

import (
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/web/service"
)

// StatusBroadcastJob pushes the system snapshot to websocket clients so
// the dashboard header stays live without polling.
type StatusBroadcastJob struct {
	statusService *service.StatusService
	hub           *service.WebSocketService
}

func NewStatusBroadcastJob(statusService *service.StatusService, hub *service.WebSocketService) *StatusBroadcastJob {
	return &StatusBroadcastJob{
		statusService: statusService,
		hub:           hub,
	}
}

func (j *StatusBroadcastJob) Run() {
	defer common.Recover("status broadcast job")

	if j.hub.GetClientCount() == 0 {
		return
	}
	j.hub.SendStatusUpdate(j.statusService.GetStatus())
}
