package service

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/vitalink-io/vitalink/config"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
)

// HostStatus holds the machine metrics shown alongside the acquisition
// state. Fields that cannot be sampled stay zero rather than failing the
// whole status call.
type HostStatus struct {
	T        time.Time `json:"-"`
	Cpu      float64   `json:"cpu"`
	CpuCores int       `json:"cpuCores"`
	Mem      struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"mem"`
	Disk struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"disk"`
	Uptime     uint64    `json:"uptime"`
	Loads      []float64 `json:"loads"`
	NetTraffic struct {
		Sent uint64 `json:"sent"`
		Recv uint64 `json:"recv"`
	} `json:"netTraffic"`
	NetIO struct {
		Up   uint64 `json:"up"`
		Down uint64 `json:"down"`
	} `json:"netIO"`
	AppStats struct {
		Goroutines int    `json:"goroutines"`
		Mem        uint64 `json:"mem"`
		Uptime     uint64 `json:"uptime"`
	} `json:"appStats"`
}

// SystemStatus is the full /api/status payload: acquisition state plus
// host metrics.
type SystemStatus struct {
	TelemetryStatus
	Host       HostStatus `json:"host"`
	Version    string     `json:"version"`
	WsClients  int        `json:"ws_clients"`
	SyncActive bool       `json:"sync_active"`
}

// StatusService samples host metrics and merges them with the telemetry
// snapshot. The previous sample is kept so network rates can be derived.
type StatusService struct {
	telemetry *TelemetryService
	hub       *WebSocketService

	mu         sync.Mutex
	last       *HostStatus
	startedAt  time.Time
	syncActive bool
	diskWarned bool
}

// diskWarnPercent is the usage level above which a full-disk warning is
// logged, once per crossing.
const diskWarnPercent = 90.0

func NewStatusService(telemetry *TelemetryService, hub *WebSocketService) *StatusService {
	return &StatusService{
		telemetry: telemetry,
		hub:       hub,
		startedAt: time.Now(),
	}
}

// SetSyncActive records whether the replication job is scheduled.
func (s *StatusService) SetSyncActive(active bool) {
	s.mu.Lock()
	s.syncActive = active
	s.mu.Unlock()
}

// GetStatus assembles the current system status.
func (s *StatusService) GetStatus() *SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	hostStatus := s.sampleHost()
	status := &SystemStatus{
		Host:       *hostStatus,
		Version:    config.GetVersion(),
		SyncActive: s.syncActive,
	}
	if s.telemetry != nil {
		status.TelemetryStatus = s.telemetry.Snapshot()
	}
	if s.hub != nil {
		status.WsClients = s.hub.GetClientCount()
	}
	s.last = hostStatus
	return status
}

func (s *StatusService) sampleHost() *HostStatus {
	now := time.Now()
	status := &HostStatus{T: now}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		logger.Warning("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.Cpu = percents[0]
	}

	status.CpuCores, err = cpu.Counts(false)
	if err != nil {
		logger.Warning("get cpu cores count failed:", err)
	}

	upTime, err := host.Uptime()
	if err != nil {
		logger.Warning("get uptime failed:", err)
	} else {
		status.Uptime = upTime
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warning("get virtual memory failed:", err)
	} else {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	diskInfo, err := disk.Usage("/")
	if err != nil {
		logger.Warning("get disk usage failed:", err)
	} else {
		status.Disk.Current = diskInfo.Used
		status.Disk.Total = diskInfo.Total

		if diskInfo.UsedPercent >= diskWarnPercent {
			if !s.diskWarned {
				s.diskWarned = true
				logger.Warningf("host disk almost full: %s of %s used",
					common.FormatBytes(int64(diskInfo.Used)), common.FormatBytes(int64(diskInfo.Total)))
			}
		} else {
			s.diskWarned = false
		}
	}

	avgState, err := load.Avg()
	if err != nil {
		logger.Warning("get load avg failed:", err)
	} else {
		status.Loads = []float64{avgState.Load1, avgState.Load5, avgState.Load15}
	}

	ioStats, err := net.IOCounters(false)
	if err != nil {
		logger.Warning("get io counters failed:", err)
	} else if len(ioStats) > 0 {
		status.NetTraffic.Sent = ioStats[0].BytesSent
		status.NetTraffic.Recv = ioStats[0].BytesRecv

		if s.last != nil {
			seconds := now.Sub(s.last.T).Seconds()
			if seconds > 0 {
				status.NetIO.Up = uint64(float64(status.NetTraffic.Sent-s.last.NetTraffic.Sent) / seconds)
				status.NetIO.Down = uint64(float64(status.NetTraffic.Recv-s.last.NetTraffic.Recv) / seconds)
			}
		}
	}

	var rtm runtime.MemStats
	runtime.ReadMemStats(&rtm)
	status.AppStats.Goroutines = runtime.NumGoroutine()
	status.AppStats.Mem = rtm.Sys
	status.AppStats.Uptime = uint64(time.Since(s.startedAt).Seconds())

	return status
}
