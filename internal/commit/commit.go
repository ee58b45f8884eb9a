// Package commit implements the controller a systemd unit invokes on every
// boot to verify the boot that follows Finalize (spec.md §4.8). It never
// mutates Host Status's servicingState directly — every transition goes
// through the injected *engine.Engine so the table in internal/types stays
// the single source of truth for legal edges.
package commit

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/microsoft/trident/internal/boot"
	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/datastore"
	"github.com/microsoft/trident/internal/engine"
	"github.com/microsoft/trident/internal/hooks"
	"github.com/microsoft/trident/internal/types"
)

// Deps wires the controller's dependencies.
type Deps struct {
	Log          types.Logger
	Store        datastore.Store
	Engine       *engine.Engine
	BootManager  *boot.Manager
	HealthChecks *hooks.HealthCheckRunner
	FS           types.FS
	Clock        types.Clock
}

// Controller runs the post-finalize and post-rollback boot verification.
type Controller struct {
	d Deps
}

func New(d Deps) *Controller {
	return &Controller{d: d}
}

// Run inspects the persisted servicing state and acts only when this boot is
// one the controller cares about; every other state is a silent no-op, since
// the unit that invokes it runs unconditionally on every boot.
func (c *Controller) Run(ctx context.Context) error {
	status, err := c.d.Store.Load()
	if err != nil {
		return err
	}
	switch status.ServicingState {
	case types.StateCleanInstallFinalized:
		return c.verifyCleanInstall(ctx, status)
	case types.StateABUpdateFinalized:
		return c.verifyTarget(ctx, status)
	case types.StateABUpdateHealthCheckFail:
		return c.verifyRollback(status)
	default:
		c.d.Log.Debugf("commit: nothing pending in state %q", status.ServicingState)
		return nil
	}
}

// verifyCleanInstall is the boot that follows a clean install's Finalize. A
// clean install has no boot-order flip to confirm or rollback chain to
// manage, so it delegates straight to engine.BootOk/BootFail rather than
// repeating verifyTarget's A/B-specific bookkeeping.
func (c *Controller) verifyCleanInstall(ctx context.Context, status *types.HostStatus) error {
	var checks []types.HealthCheck
	if status.PendingSpec != nil {
		checks = status.PendingSpec.Health
	}
	return c.d.Engine.BootOk(ctx, status, checks)
}

// verifyTarget is the boot that follows an A/B update's Finalize: it checks
// firmware actually landed on the target side, runs the pending spec's
// health checks, and on success moves the target to the head of BootOrder
// and promotes it to the installed spec.
func (c *Controller) verifyTarget(ctx context.Context, status *types.HostStatus) error {
	target := status.AbActiveVolume.Other()

	booted, err := c.d.BootManager.BootedSide()
	if err != nil || booted != target {
		cause := err
		if cause == nil {
			cause = types.Errorf(types.KindBoot, "commit",
				"expected to boot side %q but booted %q", target, booted)
		}
		return c.fail(status, cause)
	}

	var checks []types.HealthCheck
	if status.PendingSpec != nil {
		checks = status.PendingSpec.Health
	}
	for _, r := range c.d.HealthChecks.RunAll(ctx, checks) {
		if !r.Passed {
			return c.fail(status, types.Errorf(types.KindHealthCheck, "commit",
				"health check %q failed: %s", r.Name, r.Output))
		}
	}

	if err := c.d.BootManager.ABUpdateCommit(target); err != nil {
		return c.fail(status, err)
	}

	status.PushRollback(types.HostStatusSnapshot{
		ServicingIndex: status.ServicingIndex,
		AbActiveVolume: status.AbActiveVolume,
		Spec:           status.InstalledSpec,
		FinalizedAt:    c.d.Clock.Now().UTC().Format(time.RFC3339),
	}, constants.RollbackChainMax)

	status.AbActiveVolume = target
	status.ServicingIndex++
	status.InstalledSpec = status.PendingSpec
	status.PendingSpec = nil

	return c.d.Engine.Transition(status, "commit-ok")
}

// fail records the failure, flips the boot order back to the still-good
// servicing side, and moves to the health-check-failed state. Whether the
// rollback itself actually lands is only known on the next boot, handled by
// verifyRollback.
func (c *Controller) fail(status *types.HostStatus, cause error) error {
	status.LastError = types.RecordOf(cause)
	if err := c.writeFailureLog(status, cause); err != nil {
		c.d.Log.Warnf("commit: failed to write health-check failure log: %v", err)
	}
	if err := c.d.BootManager.RollbackToServicing(status.AbActiveVolume); err != nil {
		c.d.Log.Warnf("commit: failed to restore servicing boot order: %v", err)
	}
	return c.d.Engine.Transition(status, "health-check-fail")
}

// verifyRollback is the boot that follows a failed commit's rollback: it
// confirms firmware actually returned to the servicing side.
func (c *Controller) verifyRollback(status *types.HostStatus) error {
	servicing := status.AbActiveVolume
	booted, err := c.d.BootManager.BootedSide()
	if err != nil || booted != servicing {
		return c.d.Engine.Transition(status, "rollback-fail")
	}
	status.PendingSpec = nil
	return c.d.Engine.Transition(status, "rollback-ok")
}

func (c *Controller) writeFailureLog(status *types.HostStatus, cause error) error {
	if err := c.d.FS.MkdirAll(constants.HealthCheckFailureLogDir, 0o755); err != nil {
		return err
	}
	ts := c.d.Clock.Now().UTC().Format("20060102T150405Z")
	path := filepath.Join(constants.HealthCheckFailureLogDir, constants.HealthCheckFailureLogPrefix+ts+constants.HealthCheckFailureLogExt)
	body := fmt.Sprintf("servicingIndex=%d\nabActiveVolume=%s\nerror=%s\n", status.ServicingIndex, status.AbActiveVolume, cause)
	return c.d.FS.WriteFile(path, []byte(body), 0o644)
}
