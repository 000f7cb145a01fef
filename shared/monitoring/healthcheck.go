package monitoring

import (
	"context"
	"sort"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

type HealthReport struct {
	Status    string                 `json:"status"`
	Summary   string                 `json:"summary"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

func (r HealthReport) Healthy() bool {
	return r.Status == StatusHealthy
}

// HealthCheck returns nil when the dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthChecker combines the run monitor with dependency probes.
type HealthChecker struct {
	monitor *Monitor
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthChecker(monitor *Monitor) *HealthChecker {
	return &HealthChecker{
		monitor: monitor,
		checks:  make(map[string]HealthCheck),
		timeout: 3 * time.Second,
	}
}

func (h *HealthChecker) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    StatusHealthy,
		Summary:   h.monitor.GetStatusSummary(),
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(h.checks)+1),
	}

	runs := CheckResult{Status: StatusHealthy, Latency: "0s"}
	if !h.monitor.IsHealthy() {
		runs.Status = StatusUnhealthy
		runs.Message = "last run failed"
		report.Status = StatusUnhealthy
	}
	report.Checks["runs"] = runs

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := h.checks[name](checkCtx)
		cancel()

		result := CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			report.Status = StatusUnhealthy
		}
		report.Checks[name] = result
	}

	return report
}
