package dbsync

import (
	"github.com/vitalink-io/vitalink/database/model"
)

// SyncPath is the route both nodes serve and call.
const SyncPath = "/api/users/sync"

// PullResponse is the body of GET /api/users/sync: the full user set of
// the serving node. Password hashes travel with the records; the link is
// assumed private per deployment.
type PullResponse struct {
	Success   bool         `json:"success"`
	Users     []model.User `json:"users"`
	Count     int          `json:"count"`
	Timestamp string       `json:"timestamp"`
}

// PushRequest is the body of POST /api/users/sync: the full snapshot of
// the sending node. An empty set is rejected with 400 rather than merged,
// so a node with a wiped database cannot silently erase nothing-changed
// state on its peer.
type PushRequest struct {
	Users []model.User `json:"users"`
}

// ConflictReport describes one record the receiving node refused to
// apply. Timestamps are the raw stored strings, present when known.
type ConflictReport struct {
	Id         int    `json:"id"`
	Username   string `json:"username,omitempty"`
	Reason     string `json:"reason"`
	LocalTs    string `json:"local_ts,omitempty"`
	IncomingTs string `json:"incoming_ts,omitempty"`
}

// MergeReport is the body returned by POST /api/users/sync and also the
// result of applying a pulled batch locally.
type MergeReport struct {
	Success   bool             `json:"success"`
	Updated   int              `json:"updated"`
	Inserted  int              `json:"inserted"`
	Conflicts []ConflictReport `json:"conflicts"`
	Timestamp string           `json:"timestamp"`
}

// Store is what the sync client needs from the record layer: the full
// local snapshot for pushing and the shared merge for applying pulled
// records. The web service layer implements it on gorm.
type Store interface {
	FetchAll() ([]model.User, error)
	ApplyBatch(users []model.User) (MergeReport, error)
}

// Session summarizes one pull+push cycle for the log and the dashboard
// sync report stream.
type Session struct {
	CycleId    string      `json:"cycle_id"`
	Peer       string      `json:"peer"`
	StartedAt  string      `json:"started_at"`
	DurationMs int64       `json:"duration_ms"`
	Pulled     int         `json:"pulled"`
	Pushed     int         `json:"pushed"`
	Applied    MergeReport `json:"applied"`
	Remote     MergeReport `json:"remote"`
}
