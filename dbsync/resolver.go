// Package dbsync replicates the users table between the bedside node and
// the cloud node: a pure last-writer-wins resolver, the wire types of the
// /api/users/sync contract, and the HTTP client that drives a pull+push
// cycle. Both nodes run the same merge; conflicts are reported, never
// silently dropped.
package dbsync

import (
	"time"

	"github.com/vitalink-io/vitalink/database/model"
)

// Tolerance is the window within which two updated_at stamps count as the
// same write. Replication carries stamps verbatim, so after one applied
// update both copies differ by zero; the window additionally absorbs
// sub-second clock skew between the nodes instead of bouncing a record
// back and forth every cycle.
const Tolerance = time.Second

type Action int

const (
	ActionNoop Action = iota
	ActionInsert
	ActionUpdate
	ActionConflict
)

func (a Action) String() string {
	switch a {
	case ActionNoop:
		return "no_op"
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionConflict:
		return "conflict"
	}
	return "unknown"
}

// Conflict reasons carried in merge reports. A conflict never blocks the
// rest of the batch; the record is skipped and reported.
const (
	ReasonMissingTimestamp  = "missing_timestamp"
	ReasonTimestampParse    = "timestamp_parse_error"
	ReasonLocalNewer        = "local_newer"
	ReasonUsernameCollision = "username_collision"
	ReasonStoreError        = "store_error"
)

// Decision is the outcome of weighing one incoming record against the
// local copy with the same id.
type Decision struct {
	Action Action
	Reason string
}

// Resolve applies last-writer-wins on updated_at. It performs no I/O: the
// caller looks up the local record (nil when absent) and applies whatever
// action comes back.
//
// A missing local record is an insert regardless of timestamps. Otherwise
// both stamps must be present and parseable or the record is quarantined.
// Stamps within Tolerance of each other mean the copies already agree.
// An older local copy is replaced; a newer one stays and the incoming
// record is reported as local_newer so the pushing node can see it lost.
func Resolve(local *model.User, incoming *model.User) Decision {
	if local == nil {
		return Decision{Action: ActionInsert}
	}

	if local.UpdatedAt == "" || incoming.UpdatedAt == "" {
		return Decision{Action: ActionConflict, Reason: ReasonMissingTimestamp}
	}

	localAt, lerr := model.ParseStamp(local.UpdatedAt)
	incomingAt, ierr := model.ParseStamp(incoming.UpdatedAt)
	if lerr != nil || ierr != nil {
		return Decision{Action: ActionConflict, Reason: ReasonTimestampParse}
	}

	diff := incomingAt.Sub(localAt)
	if diff < 0 {
		diff = -diff
	}
	if diff < Tolerance {
		return Decision{Action: ActionNoop}
	}

	if incomingAt.After(localAt) {
		return Decision{Action: ActionUpdate}
	}
	return Decision{Action: ActionConflict, Reason: ReasonLocalNewer}
}
