package monitoring

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trend-digest/shared/logging"
)

// RunState is the outcome of the most recent run of one operation.
type RunState struct {
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Summary   string        `json:"summary"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	At        time.Time     `json:"at"`
}

// Monitor tracks the last run of each pipeline operation. Partial failures
// (per-item errors inside a completed batch) do not affect health.
type Monitor struct {
	mu      sync.RWMutex
	runs    map[string]RunState
	metrics *Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewMonitor(metrics *Metrics, log *zap.Logger) *Monitor {
	return &Monitor{
		runs:    make(map[string]RunState),
		metrics: metrics,
		log:     logging.OrNop(log),
		now:     time.Now,
	}
}

func (m *Monitor) RecordSuccess(operation, summary string, duration time.Duration) {
	m.record(RunState{Operation: operation, Success: true, Summary: summary, Duration: duration})
	m.log.Info("run completed",
		zap.String("operation", operation),
		zap.String("summary", summary),
		zap.Duration("took", duration),
	)
}

func (m *Monitor) RecordPartialFailure(operation, summary string, errorCount int, duration time.Duration) {
	m.record(RunState{Operation: operation, Success: true, Summary: summary, Duration: duration})
	m.log.Warn("run completed with item failures",
		zap.String("operation", operation),
		zap.String("summary", summary),
		zap.Int("errors", errorCount),
		zap.Duration("took", duration),
	)
}

func (m *Monitor) RecordCriticalFailure(operation string, err error, duration time.Duration) {
	m.record(RunState{Operation: operation, Success: false, Error: err.Error(), Duration: duration})
	m.log.Error("run failed",
		zap.String("operation", operation),
		zap.Duration("took", duration),
		zap.Error(err),
	)
}

func (m *Monitor) record(state RunState) {
	state.At = m.now().UTC()

	m.mu.Lock()
	m.runs[state.Operation] = state
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveRun(state.Operation, state.Success, state.Duration)
	}
}

// IsHealthy is true until some operation's most recent run failed outright.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, run := range m.runs {
		if !run.Success {
			return false
		}
	}
	return true
}

// Runs returns a copy of the last run per operation.
func (m *Monitor) Runs() map[string]RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]RunState, len(m.runs))
	for k, v := range m.runs {
		out[k] = v
	}
	return out
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.runs) == 0 {
		return "No runs yet"
	}

	var latest RunState
	for _, run := range m.runs {
		if run.At.After(latest.At) {
			latest = run
		}
	}

	if latest.Success {
		return fmt.Sprintf("Last run: %s at %s", latest.Operation, latest.At.Format("Jan 2 15:04"))
	}
	return fmt.Sprintf("Last run failed: %s at %s", latest.Operation, latest.At.Format("Jan 2 15:04"))
}
