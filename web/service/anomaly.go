package service

import (
	"context"
	"strings"

	"go.uber.org/atomic"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
)

// Anomaly kinds reported by the on-device detectors.
const (
	AnomalyECG   = "ecg"
	AnomalyPiezo = "piezo"
	AnomalyTemp  = "temp"
)

// Anomaly is the websocket notification shape for a detector hit.
type Anomaly struct {
	Kind      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// AnomalyService filters detector reports and fans the valid ones out to
// websocket clients and, when configured, Telegram.
type AnomalyService struct {
	hub    *WebSocketService
	notify *NotifyService

	ecgCount   atomic.Int64
	piezoCount atomic.Int64
	tempCount  atomic.Int64
}

func NewAnomalyService(hub *WebSocketService, notify *NotifyService) *AnomalyService {
	return &AnomalyService{hub: hub, notify: notify}
}

// ClassifyAnomaly maps a broker topic to an anomaly kind, falling back to
// the anomaly_type field when the topic carries no suffix.
func ClassifyAnomaly(topic string, payload map[string]any) (string, bool) {
	lowered := strings.ToLower(topic)
	switch {
	case strings.Contains(lowered, "/ecg"):
		return AnomalyECG, true
	case strings.Contains(lowered, "/piezo"):
		return AnomalyPiezo, true
	case strings.Contains(lowered, "/temp"):
		return AnomalyTemp, true
	}
	switch strings.ToUpper(stringField(payload, "anomaly_type")) {
	case "ECG":
		return AnomalyECG, true
	case "PIEZO":
		return AnomalyPiezo, true
	case "TEMP":
		return AnomalyTemp, true
	}
	return "", false
}

// validateAnomaly drops reports with zeroed measurements. The detectors
// emit those during warm-up before the model has a threshold.
func validateAnomaly(kind string, data map[string]any) error {
	switch kind {
	case AnomalyTemp:
		if numField(data, "temperature") == 0 {
			return common.NewError("temperature missing or zero")
		}
	case AnomalyECG, AnomalyPiezo:
		if numField(data, "reconstruction_error") == 0 {
			return common.NewError("reconstruction_error missing or zero")
		}
	default:
		return common.NewErrorf("unknown anomaly kind %q", kind)
	}
	if numField(data, "threshold") == 0 {
		return common.NewError("threshold missing or zero")
	}
	return nil
}

// Handle processes one detector report from the broker. Invalid reports
// are logged and dropped.
func (s *AnomalyService) Handle(ctx context.Context, topic string, payload map[string]any) {
	kind, ok := ClassifyAnomaly(topic, payload)
	if !ok {
		logger.Warningf("anomaly with unknown kind on topic %s", topic)
		return
	}
	if err := validateAnomaly(kind, payload); err != nil {
		logger.Debugf("rejected %s anomaly: %v", kind, err)
		return
	}

	switch kind {
	case AnomalyECG:
		s.ecgCount.Inc()
	case AnomalyPiezo:
		s.piezoCount.Inc()
	case AnomalyTemp:
		s.tempCount.Inc()
	}

	anomaly := Anomaly{
		Kind:      kind,
		Timestamp: model.NowStamp(),
		Data:      payload,
	}
	logger.Infof("%s anomaly detected", strings.ToUpper(kind))
	if s.hub != nil {
		s.hub.SendAnomaly(anomaly)
	}
	if s.notify != nil {
		s.notify.SendAnomalyAlert(ctx, anomaly)
	}
}

// Counts returns how many valid anomalies each detector has reported.
func (s *AnomalyService) Counts() map[string]int64 {
	return map[string]int64{
		AnomalyECG:   s.ecgCount.Load(),
		AnomalyPiezo: s.piezoCount.Load(),
		AnomalyTemp:  s.tempCount.Load(),
	}
}

func numField(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
