package dbsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitalink-io/vitalink/database/model"
)

func userAt(updatedAt string) *model.User {
	return &model.User{
		Id:           7,
		Username:     "mrossi",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Mario",
		LastName:     "Rossi",
		Role:         "patient",
		CreatedAt:    "2026-01-10T08:00:00Z",
		UpdatedAt:    updatedAt,
	}
}

func TestResolveInsertWhenLocalAbsent(t *testing.T) {
	// A new record is inserted no matter what its timestamp looks like.
	for _, stamp := range []string{"2026-03-01T10:00:00Z", "", "not-a-date"} {
		d := Resolve(nil, userAt(stamp))
		assert.Equal(t, ActionInsert, d.Action, "stamp %q", stamp)
		assert.Empty(t, d.Reason)
	}
}

func TestResolveMissingTimestamp(t *testing.T) {
	d := Resolve(userAt("2026-03-01T10:00:00Z"), userAt(""))
	assert.Equal(t, ActionConflict, d.Action)
	assert.Equal(t, ReasonMissingTimestamp, d.Reason)

	d = Resolve(userAt(""), userAt("2026-03-01T10:00:00Z"))
	assert.Equal(t, ActionConflict, d.Action)
	assert.Equal(t, ReasonMissingTimestamp, d.Reason)
}

func TestResolveUnparseableTimestamp(t *testing.T) {
	d := Resolve(userAt("2026-03-01T10:00:00Z"), userAt("yesterday-ish"))
	assert.Equal(t, ActionConflict, d.Action)
	assert.Equal(t, ReasonTimestampParse, d.Reason)

	d = Resolve(userAt("garbage"), userAt("2026-03-01T10:00:00Z"))
	assert.Equal(t, ActionConflict, d.Action)
	assert.Equal(t, ReasonTimestampParse, d.Reason)
}

func TestResolveLastWriterWins(t *testing.T) {
	tests := []struct {
		name     string
		local    string
		incoming string
		action   Action
		reason   string
	}{
		{"incoming newer", "2026-03-01T10:00:00Z", "2026-03-01T10:05:00Z", ActionUpdate, ""},
		{"local newer", "2026-03-01T10:05:00Z", "2026-03-01T10:00:00Z", ActionConflict, ReasonLocalNewer},
		{"identical stamps", "2026-03-01T10:00:00Z", "2026-03-01T10:00:00Z", ActionNoop, ""},
		{"half second apart", "2026-03-01T10:00:00Z", "2026-03-01T10:00:00.500Z", ActionNoop, ""},
		{"half second behind", "2026-03-01T10:00:00.500Z", "2026-03-01T10:00:00Z", ActionNoop, ""},
		{"exactly one second ahead", "2026-03-01T10:00:00Z", "2026-03-01T10:00:01Z", ActionUpdate, ""},
		{"exactly one second behind", "2026-03-01T10:00:01Z", "2026-03-01T10:00:00Z", ActionConflict, ReasonLocalNewer},
		{"naive local vs aware incoming", "2026-03-01 10:00:00", "2026-03-01T10:05:00Z", ActionUpdate, ""},
		{"fractional seconds parsed", "2026-03-01T10:00:00.123456Z", "2026-03-01T10:00:02Z", ActionUpdate, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Resolve(userAt(tc.local), userAt(tc.incoming))
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestResolveIsSymmetricallyQuiet(t *testing.T) {
	// After an applied update both copies hold the same stamp, so the
	// reverse direction of the next cycle must land inside the tolerance
	// window and do nothing.
	winner := userAt("2026-03-01T10:05:00Z")
	d := Resolve(userAt("2026-03-01T10:00:00Z"), winner)
	assert.Equal(t, ActionUpdate, d.Action)

	d = Resolve(winner, winner)
	assert.Equal(t, ActionNoop, d.Action)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "no_op", ActionNoop.String())
	assert.Equal(t, "insert", ActionInsert.String())
	assert.Equal(t, "update", ActionUpdate.String())
	assert.Equal(t, "conflict", ActionConflict.String())
}
