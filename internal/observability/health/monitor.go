// Package health runs readiness checks against the dependencies of a
// process and folds them into one status.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 2 * time.Second

// CheckFunc reports a dependency problem as an error.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	timeout  time.Duration
	fn       CheckFunc
}

// Result is the outcome of one check.
type Result struct {
	Name       string  `json:"name"`
	Status     Status  `json:"status"`
	Critical   bool    `json:"critical"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Report is the outcome of every registered check. A failed critical check
// makes the process unhealthy; any other failure only degrades it.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Result  `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

type Monitor struct {
	logger *logrus.Logger
	mu     sync.RWMutex
	checks []check
}

func NewMonitor(logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{logger: logger}
}

// Register adds a check. A zero timeout uses the default of two seconds.
func (m *Monitor) Register(name string, critical bool, timeout time.Duration, fn CheckFunc) {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, critical: critical, timeout: timeout, fn: fn})
}

// Run executes all checks concurrently.
func (m *Monitor) Run(ctx context.Context) Report {
	m.mu.RLock()
	checks := append([]check(nil), m.checks...)
	m.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			results[i] = m.execute(ctx, c)
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := StatusHealthy
	for _, r := range results {
		if r.Status == StatusHealthy {
			continue
		}
		if r.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return Report{Status: status, Checks: results, Timestamp: time.Now().UTC()}
}

func (m *Monitor) execute(ctx context.Context, c check) Result {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.fn(checkCtx)
	result := Result{
		Name:       c.name,
		Status:     StatusHealthy,
		Critical:   c.critical,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		m.logger.WithError(err).WithFields(logrus.Fields{
			"check":    c.name,
			"critical": c.critical,
		}).Warn("Health check failed")
	}
	return result
}
