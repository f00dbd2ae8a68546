// Package health reports liveness and dependency status for the API.
package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Pinger checks one dependency. Both *sqlx.DB (via a small adapter) and the
// task broker satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to the Pinger interface.
type PingFunc func(ctx context.Context) error

// Ping calls the wrapped function.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CheckResult is the status of one dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HostStats is a snapshot of the machine running the process.
type HostStats struct {
	Hostname      string  `json:"hostname,omitempty"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Report is the full health payload.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Host      HostStats              `json:"host"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Healthy reports whether every dependency check passed.
func (r Report) Healthy() bool { return r.Status == "ok" }

// Service runs dependency checks with a per-check timeout.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
	log     *logger.Logger
}

// New creates a health service with the given per-check timeout.
func New(timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("health")
	}
	return &Service{checks: make(map[string]Pinger), timeout: timeout, log: log}
}

// Register adds a named dependency check.
func (s *Service) Register(name string, p Pinger) {
	s.checks[name] = p
}

// Check runs every registered check and gathers host statistics.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{
		Status:    "ok",
		Checks:    make(map[string]CheckResult, len(s.checks)),
		CheckedAt: time.Now().UTC(),
	}

	for name, p := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.Ping(checkCtx)
		cancel()

		if err != nil {
			report.Status = "degraded"
			report.Checks[name] = CheckResult{Status: "down", Error: err.Error()}
			s.log.WithError(err).WithField("check", name).Warn("health check failed")
			continue
		}
		report.Checks[name] = CheckResult{Status: "up"}
	}

	report.Host = hostStats()
	return report
}

func hostStats() HostStats {
	var stats HostStats
	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.UptimeSeconds = info.Uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats
}
