package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalink-io/vitalink/config"
)

func TestGetStatusMergesSources(t *testing.T) {
	telemetry := NewTelemetryService(nil)
	telemetry.StartSession("sess-20260301-001")
	telemetry.SetBrokerConnected(true)

	statusService := NewStatusService(telemetry, nil)
	statusService.SetSyncActive(true)

	status := statusService.GetStatus()
	assert.Equal(t, config.GetVersion(), status.Version)
	assert.True(t, status.SyncActive)
	assert.True(t, status.Acquiring)
	assert.True(t, status.BrokerConnected)
	assert.Equal(t, "sess-20260301-001", status.CurrentSession)
	assert.Equal(t, 0, status.WsClients)
	assert.Positive(t, status.Host.AppStats.Goroutines)

	// A second sample derives rates off the first one without erroring.
	second := statusService.GetStatus()
	assert.Equal(t, status.Version, second.Version)
}
