package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 1500 * time.Millisecond

// HealthStatus is the outcome of a dependency check.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthError    HealthStatus = "error"
)

// DependencyCheck probes one backend dependency.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// CheckResult is the outcome of one DependencyCheck.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latencyNs"`
}

// HealthReport aggregates every check.
type HealthReport struct {
	Status HealthStatus  `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Health runs dependency checks concurrently.
type Health struct {
	checks []DependencyCheck
	now    func() time.Time
}

// NewHealth returns a Health over checks.
func NewHealth(checks ...DependencyCheck) *Health {
	return &Health{checks: append([]DependencyCheck(nil), checks...), now: time.Now}
}

// Collect runs every check and reports the worst status. Timeouts and cancellations
// are errors; other failures degrade.
func (h *Health) Collect(ctx context.Context) HealthReport {
	results := make([]CheckResult, len(h.checks))
	var wg sync.WaitGroup
	for i, check := range h.checks {
		wg.Add(1)
		go func(i int, check DependencyCheck) {
			defer wg.Done()
			results[i] = h.run(ctx, check)
		}(i, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := HealthReport{Status: HealthOK, Checks: results}
	for _, r := range results {
		switch {
		case r.Status == HealthError:
			report.Status = HealthError
		case r.Status == HealthDegraded && report.Status == HealthOK:
			report.Status = HealthDegraded
		}
	}
	return report
}

func (h *Health) run(ctx context.Context, check DependencyCheck) CheckResult {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := h.now()
	var err error
	if check.Check == nil {
		err = errors.New("no check function")
	} else {
		err = check.Check(ctx)
	}
	result := CheckResult{Name: check.Name, Status: HealthOK, Latency: h.now().Sub(start)}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.Detail = HealthError, "timeout"
	case errors.Is(err, context.Canceled):
		result.Status, result.Detail = HealthError, "cancelled"
	default:
		result.Status, result.Detail = HealthDegraded, err.Error()
	}
	return result
}
