package job

import (
	"context"

	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/web/service"
)

// DbSyncJob runs one user-database replication cycle against the peer.
// The scheduler wraps it with DelayIfStillRunning, so a slow peer stalls
// the next cycle instead of overlapping it.
type DbSyncJob struct {
	ctx    context.Context
	client *dbsync.Client
	hub    *service.WebSocketService
}

func NewDbSyncJob(ctx context.Context, client *dbsync.Client, hub *service.WebSocketService) *DbSyncJob {
	return &DbSyncJob{
		ctx:    ctx,
		client: client,
		hub:    hub,
	}
}

// Run executes a pull+merge+push cycle. A failed cycle only logs: the
// next tick starts from the database state, so nothing is lost.
func (j *DbSyncJob) Run() {
	defer common.Recover("user db sync job")

	session, err := j.client.RunCycle(j.ctx)
	if err != nil {
		logger.Warning("user db sync cycle failed:", err)
		return
	}

	logger.Infof("user db sync %s: pulled=%d updated=%d inserted=%d conflicts=%d pushed=%d (%dms)",
		session.CycleId, session.Pulled,
		session.Applied.Updated, session.Applied.Inserted, len(session.Applied.Conflicts),
		session.Pushed, session.DurationMs)

	if j.hub != nil {
		j.hub.SendSyncReport(session)
	}
}
