package service

import (
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/vitalink-io/vitalink/database"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
)

// SyncService is the record side of the replication contract on gorm: the
// full-snapshot reads both nodes serve and the record-by-record merge both
// nodes apply. It implements dbsync.Store for the cycle client.
type SyncService struct {
	db *gorm.DB

	recordMutexes map[int]*sync.Mutex
	mutexLock     sync.Mutex
}

func NewSyncService(db *gorm.DB) *SyncService {
	return &SyncService{
		db:            db,
		recordMutexes: make(map[int]*sync.Mutex),
	}
}

// recordMutex returns a mutex for a specific user id so concurrent merges
// and admin edits of the same record are serialized.
func (s *SyncService) recordMutex(id int) *sync.Mutex {
	s.mutexLock.Lock()
	defer s.mutexLock.Unlock()

	if mutex, exists := s.recordMutexes[id]; exists {
		return mutex
	}

	mutex := &sync.Mutex{}
	s.recordMutexes[id] = mutex
	return mutex
}

// FetchAll returns the full replicated user set ordered by id.
func (s *SyncService) FetchAll() ([]model.User, error) {
	var users []model.User
	err := s.db.Order("id").Find(&users).Error
	return users, err
}

// ApplyBatch merges an incoming snapshot record by record. A record that
// cannot be applied is reported as a conflict and skipped; its siblings
// still merge. Replaying the same batch is harmless: applied records come
// back inside the tolerance window and resolve to no-ops.
func (s *SyncService) ApplyBatch(users []model.User) (dbsync.MergeReport, error) {
	report := dbsync.MergeReport{
		Success:   true,
		Conflicts: []dbsync.ConflictReport{},
	}
	for i := range users {
		s.applyRecord(&report, users[i])
	}
	report.Timestamp = model.NowStamp()
	return report, nil
}

// applyRecord resolves one incoming record against the local copy and
// applies the decision. Inserts and updates are full-record replaces with
// updated_at carried verbatim, so both nodes end up byte-identical.
func (s *SyncService) applyRecord(report *dbsync.MergeReport, incoming model.User) {
	mutex := s.recordMutex(incoming.Id)
	mutex.Lock()
	defer mutex.Unlock()

	local, err := s.getById(incoming.Id)
	if err != nil {
		s.reportStoreError(report, incoming, err)
		return
	}

	decision := dbsync.Resolve(local, &incoming)

	if decision.Action == dbsync.ActionInsert || decision.Action == dbsync.ActionUpdate {
		owner, err := s.usernameOwner(incoming.Username, incoming.Id)
		if err != nil {
			s.reportStoreError(report, incoming, err)
			return
		}
		if owner != nil {
			report.Conflicts = append(report.Conflicts, dbsync.ConflictReport{
				Id:         incoming.Id,
				Username:   incoming.Username,
				Reason:     dbsync.ReasonUsernameCollision,
				IncomingTs: incoming.UpdatedAt,
			})
			logger.Warningf("sync merge: username %q already belongs to record %d, refusing record %d",
				incoming.Username, owner.Id, incoming.Id)
			return
		}
	}

	switch decision.Action {
	case dbsync.ActionInsert:
		if err := s.writeWithRetry(func(db *gorm.DB) error {
			return db.Create(&incoming).Error
		}); err != nil {
			s.reportStoreError(report, incoming, err)
			return
		}
		report.Inserted++

	case dbsync.ActionUpdate:
		if err := s.writeWithRetry(func(db *gorm.DB) error {
			return db.Save(&incoming).Error
		}); err != nil {
			s.reportStoreError(report, incoming, err)
			return
		}
		report.Updated++

	case dbsync.ActionNoop:

	case dbsync.ActionConflict:
		conflict := dbsync.ConflictReport{
			Id:         incoming.Id,
			Username:   incoming.Username,
			Reason:     decision.Reason,
			IncomingTs: incoming.UpdatedAt,
		}
		if local != nil {
			conflict.LocalTs = local.UpdatedAt
		}
		report.Conflicts = append(report.Conflicts, conflict)

		if decision.Reason == dbsync.ReasonLocalNewer {
			// Expected whenever this node wrote last; the pushing side
			// learns the newer copy on its own next pull.
			logger.Debugf("sync merge: record %d kept, local copy is newer (%s > %s)",
				incoming.Id, conflict.LocalTs, conflict.IncomingTs)
		} else {
			logger.Warningf("sync merge: record %d quarantined: %s", incoming.Id, decision.Reason)
		}
	}
}

func (s *SyncService) getById(id int) (*model.User, error) {
	var user model.User
	err := s.db.First(&user, "id = ?", id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// usernameOwner finds a different record that already holds the username,
// which would otherwise break the unique index and desynchronize the
// nodes silently.
func (s *SyncService) usernameOwner(username string, excludeId int) (*model.User, error) {
	var user model.User
	err := s.db.First(&user, "username = ? AND id <> ?", username, excludeId).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// writeWithRetry retries a write that lost the SQLite write lock, with
// exponential backoff (50ms, 100ms, 200ms). Other errors fail fast.
func (s *SyncService) writeWithRetry(op func(*gorm.DB) error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			logger.Debugf("sync merge: database locked, retrying after %v", delay)
			time.Sleep(delay)
		}

		err = op(s.db)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "locked") {
			return err
		}
	}
	return err
}

func (s *SyncService) reportStoreError(report *dbsync.MergeReport, incoming model.User, err error) {
	logger.Warningf("sync merge: record %d (%s): %v", incoming.Id, incoming.Username, err)
	report.Conflicts = append(report.Conflicts, dbsync.ConflictReport{
		Id:         incoming.Id,
		Username:   incoming.Username,
		Reason:     dbsync.ReasonStoreError,
		IncomingTs: incoming.UpdatedAt,
	})
}
