package hooks

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/microsoft/trident/internal/types"
)

// HealthCheckRunner drives the two probe kinds a Host Configuration's
// healthChecks list can name: a script (non-zero exit fails the check) and
// a named systemd unit's liveness (polled until active or timeout).
type HealthCheckRunner struct {
	Runner types.Runner
}

// Result is one health check's outcome, kept even on success so the commit
// controller can log every check it ran.
type Result struct {
	Name   string
	Passed bool
	Output string
}

// RunAll executes every check and returns as soon as collection is
// complete; callers decide whether any failure is fatal.
func (h *HealthCheckRunner) RunAll(ctx context.Context, checks []types.HealthCheck) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, h.runOne(ctx, c))
	}
	return results
}

func (h *HealthCheckRunner) runOne(ctx context.Context, c types.HealthCheck) Result {
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.Script != "" {
		out, err := h.Runner.RunContext(cctx, c.Script)
		return Result{Name: c.Name, Passed: err == nil, Output: string(out)}
	}
	if c.SystemdUnit != "" {
		return h.pollUnit(cctx, c)
	}
	return Result{Name: c.Name, Passed: false, Output: "health check names neither a script nor a systemd unit"}
}

// pollUnit polls `systemctl is-active <unit>` on a bounded backoff until it
// reports active or the check's own context deadline elapses.
func (h *HealthCheckRunner) pollUnit(ctx context.Context, c types.HealthCheck) Result {
	var lastOut string
	op := func() error {
		out, err := h.Runner.RunContext(ctx, "systemctl", "is-active", c.SystemdUnit)
		lastOut = strings.TrimSpace(string(out))
		if err != nil || lastOut != "active" {
			return types.Errorf(types.KindHealthCheck, "hooks", "unit %s is %s", c.SystemdUnit, lastOut)
		}
		return nil
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(op, bo)
	return Result{Name: c.Name, Passed: err == nil, Output: lastOut}
}
