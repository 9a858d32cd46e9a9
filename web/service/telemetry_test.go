package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFramesAccumulates(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	err := telemetry.PushFrames(SignalECG, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, 1756200000)
	require.NoError(t, err)

	assert.Equal(t, 2, telemetry.BufferedFrames(SignalECG))

	status := telemetry.Snapshot()
	assert.EqualValues(t, 2, status.Stats[SignalECG].Samples)
	assert.NotEmpty(t, status.Stats[SignalECG].LastUpdate)
	assert.EqualValues(t, 1, status.PacketCount)
}

func TestPushFramesRejectsUnknownSignal(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	err := telemetry.PushFrames("EEG", [][]float64{{1}}, 0)
	assert.Error(t, err)
}

func TestTempTracksCurrentTemperature(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	require.NoError(t, telemetry.PushFrames(SignalTEMP, [][]float64{{36.5}, {37.1}}, 0))

	status := telemetry.Snapshot()
	temp := status.Stats[SignalTEMP].CurrentTemp
	require.NotNil(t, temp)
	assert.InDelta(t, 37.1, *temp, 0.001)
	assert.Nil(t, status.Stats[SignalECG].CurrentTemp)
}

func TestRingOverwritesOldest(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	// The temperature ring holds 120 frames; five extra pushes must evict
	// the five oldest.
	for i := 0; i < tempBufferSize+5; i++ {
		require.NoError(t, telemetry.PushFrames(SignalTEMP, [][]float64{{float64(i)}}, 0))
	}

	assert.Equal(t, tempBufferSize, telemetry.BufferedFrames(SignalTEMP))

	chart := telemetry.ChartData(SignalTEMP)
	require.Len(t, chart.Y, 1)
	require.Len(t, chart.Y[0], tempBufferSize)
	assert.Equal(t, 5.0, chart.Y[0][0], "oldest surviving frame")
	assert.Equal(t, float64(tempBufferSize+4), chart.Y[0][tempBufferSize-1])
}

func TestChartDataStridesLongBuffers(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	frames := make([][]float64, ecgBufferSize)
	for i := range frames {
		frames[i] = []float64{float64(i)}
	}
	require.NoError(t, telemetry.PushFrames(SignalECG, frames, 0))

	chart := telemetry.ChartData(SignalECG)
	require.Len(t, chart.Y, 1)

	// 2500 frames stride by 2500/1000 = 2, leaving every other frame.
	step := ecgBufferSize / maxChartPoints
	wantLen := (ecgBufferSize + step - 1) / step
	require.Len(t, chart.X, wantLen)
	require.Len(t, chart.Y[0], wantLen)
	assert.Equal(t, 0.0, chart.Y[0][0])
	assert.Equal(t, float64(step), chart.Y[0][1])
}

func TestChartDataSplitsChannels(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	require.NoError(t, telemetry.PushFrames(SignalADC, [][]float64{{1, 10}, {2, 20}}, 0))

	chart := telemetry.ChartData(SignalADC)
	assert.Equal(t, []int{0, 1}, chart.X)
	require.Len(t, chart.Y, 2)
	assert.Equal(t, []float64{1, 2}, chart.Y[0])
	assert.Equal(t, []float64{10, 20}, chart.Y[1])
}

func TestChartDataEmptyBuffer(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	chart := telemetry.ChartData(SignalECG)
	assert.Empty(t, chart.X)
	assert.Empty(t, chart.Y)

	chart = telemetry.ChartData("EEG")
	assert.Empty(t, chart.X)
}

func TestSessionLifecycle(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	telemetry.StartSession("sess-20260301-001")
	status := telemetry.Snapshot()
	assert.True(t, status.Acquiring)
	assert.Equal(t, "sess-20260301-001", status.CurrentSession)

	telemetry.EndSession("sess-20260301-001")
	status = telemetry.Snapshot()
	assert.False(t, status.Acquiring)
	assert.Equal(t, "sess-20260301-001", status.CurrentSession,
		"the last session id stays visible after the run ends")
}

func TestConnectionFlags(t *testing.T) {
	telemetry := NewTelemetryService(nil)

	telemetry.SetDeviceConnected(true)
	telemetry.SetBrokerConnected(true)
	status := telemetry.Snapshot()
	assert.True(t, status.DeviceConnected)
	assert.True(t, status.BrokerConnected)

	telemetry.SetDeviceConnected(false)
	assert.False(t, telemetry.Snapshot().DeviceConnected)
}

func TestEveryFifthPacketBroadcasts(t *testing.T) {
	hub := NewWebSocketService()
	telemetry := NewTelemetryService(hub)

	// No clients are registered, so the broadcast lands in the hub's
	// buffered channel; pushing must never block on it.
	for i := 0; i < chartEveryPacket*3; i++ {
		require.NoError(t, telemetry.PushFrames(SignalECG, [][]float64{{float64(i)}}, 0))
	}
	assert.EqualValues(t, chartEveryPacket*3, telemetry.Snapshot().PacketCount)
}
