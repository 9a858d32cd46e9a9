package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookReceivesBufferedEntries(t *testing.T) {
	var entries []string
	SetHook(func(entry string) { entries = append(entries, entry) })
	defer SetHook(nil)

	Info("replication cycle complete")
	Warningf("peer responded %d", 401)

	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], "INFO - replication cycle complete")
	assert.Contains(t, entries[1], "WARNING - peer responded 401")
}

// A consumer that itself logs (the hub does on a full channel) must not
// feed its own entries back into the hook.
func TestHookThatLogsDoesNotFeedItself(t *testing.T) {
	calls := 0
	SetHook(func(entry string) {
		calls++
		Warning("broadcast channel full, dropping message")
	})
	defer SetHook(nil)

	Info("one entry")
	assert.Equal(t, 1, calls)
}

func TestDetachedHookStopsReceiving(t *testing.T) {
	calls := 0
	SetHook(func(string) { calls++ })
	Info("while attached")
	SetHook(nil)
	Info("after detach")
	assert.Equal(t, 1, calls)
}
