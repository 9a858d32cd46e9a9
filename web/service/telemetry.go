package service

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
)

// Signals published by the acquisition firmware.
const (
	SignalECG  = "ECG"
	SignalADC  = "ADC"
	SignalTEMP = "TEMP"
)

// Buffer capacities match the acquisition rates: ECG and the piezo ADC
// stream fast enough that 2500 frames cover the chart window, while the
// temperature probe reports every few seconds.
const (
	ecgBufferSize  = 2500
	adcBufferSize  = 2500
	tempBufferSize = 120

	maxChartPoints   = 1000
	chartEveryPacket = 5
)

// Frame is one sample group from a device: one value per channel plus the
// acquisition timestamp in epoch seconds.
type Frame struct {
	Values    []float64 `json:"values"`
	Timestamp float64   `json:"timestamp"`
}

// ChartPayload carries downsampled series ready for plotting, one Y series
// per channel.
type ChartPayload struct {
	X []int       `json:"x"`
	Y [][]float64 `json:"y"`
}

// SignalStats counts what a signal buffer has seen since startup.
type SignalStats struct {
	Samples     int64    `json:"samples"`
	LastUpdate  string   `json:"last_update,omitempty"`
	CurrentTemp *float64 `json:"current_temp,omitempty"`
}

// TelemetryStatus is the live acquisition snapshot served by /api/status
// and pushed over the websocket.
type TelemetryStatus struct {
	DeviceConnected bool                   `json:"device_connected"`
	BrokerConnected bool                   `json:"mqtt_connected"`
	Acquiring       bool                   `json:"is_acquiring"`
	Stats           map[string]SignalStats `json:"stats"`
	PacketCount     int64                  `json:"packet_count"`
	Uptime          int64                  `json:"uptime"`
	CurrentSession  string                 `json:"current_session"`
}

// frameRing is a fixed-size overwrite-oldest buffer.
type frameRing struct {
	buf  []Frame
	head int
	full bool
}

func newFrameRing(size int) *frameRing {
	return &frameRing{buf: make([]Frame, size)}
}

func (r *frameRing) push(f Frame) {
	r.buf[r.head] = f
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
		r.full = true
	}
}

func (r *frameRing) count() int {
	if r.full {
		return len(r.buf)
	}
	return r.head
}

// snapshot returns the buffered frames oldest first.
func (r *frameRing) snapshot() []Frame {
	if !r.full {
		out := make([]Frame, r.head)
		copy(out, r.buf[:r.head])
		return out
	}
	out := make([]Frame, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	out = append(out, r.buf[:r.head]...)
	return out
}

// TelemetryService buffers the live signal streams coming off the MQTT
// broker and fans chart updates out to websocket clients.
type TelemetryService struct {
	hub *WebSocketService

	mu    sync.Mutex
	rings map[string]*frameRing
	stats map[string]*SignalStats

	sessionId string
	startedAt time.Time

	packetCount     atomic.Int64
	acquiring       atomic.Bool
	deviceConnected atomic.Bool
	brokerConnected atomic.Bool
}

func NewTelemetryService(hub *WebSocketService) *TelemetryService {
	return &TelemetryService{
		hub: hub,
		rings: map[string]*frameRing{
			SignalECG:  newFrameRing(ecgBufferSize),
			SignalADC:  newFrameRing(adcBufferSize),
			SignalTEMP: newFrameRing(tempBufferSize),
		},
		stats: map[string]*SignalStats{
			SignalECG:  {},
			SignalADC:  {},
			SignalTEMP: {},
		},
	}
}

// ValidSignal reports whether a signal name is one we chart.
func ValidSignal(signal string) bool {
	switch signal {
	case SignalECG, SignalADC, SignalTEMP:
		return true
	}
	return false
}

// PushFrames appends incoming frames to a signal buffer. A zero timestamp
// is replaced with the arrival time. Every fifth packet a downsampled
// chart refresh is broadcast, so slow websocket clients never see more
// than a fraction of the raw stream.
func (s *TelemetryService) PushFrames(signal string, frames [][]float64, timestamp float64) error {
	if !ValidSignal(signal) {
		return common.NewErrorf("unknown signal %q", signal)
	}
	if len(frames) == 0 {
		return nil
	}
	if timestamp == 0 {
		timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	s.mu.Lock()
	ring := s.rings[signal]
	for _, values := range frames {
		ring.push(Frame{Values: values, Timestamp: timestamp})
	}
	st := s.stats[signal]
	st.Samples += int64(len(frames))
	st.LastUpdate = model.NowStamp()
	if signal == SignalTEMP {
		last := frames[len(frames)-1]
		if len(last) > 0 {
			temp := last[0]
			st.CurrentTemp = &temp
		}
	}
	s.mu.Unlock()

	if s.packetCount.Inc()%chartEveryPacket == 0 && s.hub != nil {
		s.hub.SendDataUpdate(signal, s.ChartData(signal))
	}
	return nil
}

// ChartData snapshots a signal buffer and strides it down toward
// maxChartPoints, which keeps waveform shape without flooding the
// browser.
func (s *TelemetryService) ChartData(signal string) ChartPayload {
	if !ValidSignal(signal) {
		return ChartPayload{X: []int{}, Y: [][]float64{}}
	}

	s.mu.Lock()
	frames := s.rings[signal].snapshot()
	s.mu.Unlock()

	if len(frames) > maxChartPoints {
		step := len(frames) / maxChartPoints
		strided := make([]Frame, 0, maxChartPoints+1)
		for i := 0; i < len(frames); i += step {
			strided = append(strided, frames[i])
		}
		frames = strided
	}

	if len(frames) == 0 {
		return ChartPayload{X: []int{}, Y: [][]float64{}}
	}

	channels := len(frames[0].Values)
	x := make([]int, len(frames))
	y := make([][]float64, channels)
	for ch := range y {
		y[ch] = make([]float64, 0, len(frames))
	}
	for i, f := range frames {
		x[i] = i
		for ch := 0; ch < channels && ch < len(f.Values); ch++ {
			y[ch] = append(y[ch], f.Values[ch])
		}
	}
	return ChartPayload{X: x, Y: y}
}

// BufferedFrames reports how many frames a signal currently holds.
func (s *TelemetryService) BufferedFrames(signal string) int {
	if !ValidSignal(signal) {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rings[signal].count()
}

// StartSession marks the beginning of an acquisition run.
func (s *TelemetryService) StartSession(sessionId string) {
	s.mu.Lock()
	s.sessionId = sessionId
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.acquiring.Store(true)

	logger.Infof("acquisition session started: %s", sessionId)
	if s.hub != nil {
		s.hub.SendAcquisitionStatus(true)
	}
}

// EndSession marks the end of an acquisition run. The buffers keep their
// tail so charts do not blank out the moment a session closes.
func (s *TelemetryService) EndSession(sessionId string) {
	s.acquiring.Store(false)
	logger.Infof("acquisition session ended: %s", sessionId)
	if s.hub != nil {
		s.hub.SendAcquisitionStatus(false)
	}
}

func (s *TelemetryService) SetDeviceConnected(connected bool) {
	s.deviceConnected.Store(connected)
	if s.hub != nil {
		s.hub.SendDeviceStatus(connected)
	}
}

func (s *TelemetryService) SetBrokerConnected(connected bool) {
	s.brokerConnected.Store(connected)
}

// Snapshot copies the live counters for the status endpoint.
func (s *TelemetryService) Snapshot() TelemetryStatus {
	s.mu.Lock()
	stats := make(map[string]SignalStats, len(s.stats))
	for name, st := range s.stats {
		stats[name] = *st
	}
	sessionId := s.sessionId
	startedAt := s.startedAt
	s.mu.Unlock()

	var uptime int64
	if !startedAt.IsZero() {
		uptime = int64(time.Since(startedAt).Seconds())
	}
	return TelemetryStatus{
		DeviceConnected: s.deviceConnected.Load(),
		BrokerConnected: s.brokerConnected.Load(),
		Acquiring:       s.acquiring.Load(),
		Stats:           stats,
		PacketCount:     s.packetCount.Load(),
		Uptime:          uptime,
		CurrentSession:  sessionId,
	}
}
