package system

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Health is the snapshot served on the health endpoint.
type Health struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	MemoryRSSBytes uint64  `json:"memory_rss_bytes,omitempty"`
	CPUPercent     float64 `json:"cpu_percent,omitempty"`
}

// HealthReporter samples process-level health. Process metrics are
// best-effort; a sampling failure still yields an "ok" snapshot.
type HealthReporter struct {
	started time.Time
	proc    *process.Process
}

// NewHealthReporter starts the uptime clock at construction.
func NewHealthReporter() *HealthReporter {
	r := &HealthReporter{started: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		r.proc = proc
	}
	return r
}

// Snapshot returns the current health of the process.
func (r *HealthReporter) Snapshot() Health {
	h := Health{
		Status:        "ok",
		UptimeSeconds: time.Since(r.started).Seconds(),
	}
	if r.proc == nil {
		return h
	}
	if mem, err := r.proc.MemoryInfo(); err == nil && mem != nil {
		h.MemoryRSSBytes = mem.RSS
	}
	if cpu, err := r.proc.CPUPercent(); err == nil {
		h.CPUPercent = cpu
	}
	return h
}
