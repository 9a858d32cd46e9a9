package job

import (
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/web/service"
)

// SessionCleanupJob prunes expired login sessions from the database.
type SessionCleanupJob struct {
	userService *service.UserService
}

func NewSessionCleanupJob(userService *service.UserService) *SessionCleanupJob {
	return &SessionCleanupJob{userService: userService}
}

func (j *SessionCleanupJob) Run() {
	defer common.Recover("session cleanup job")

	removed, err := j.userService.CleanupExpiredSessions()
	if err != nil {
		logger.Warning("session cleanup failed:", err)
		return
	}
	if removed > 0 {
		logger.Debugf("session cleanup removed %d expired sessions", removed)
	}
}
