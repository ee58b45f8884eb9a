package engine

import (
	"github.com/microsoft/trident/internal/osconfig"
	"github.com/microsoft/trident/internal/types"
)

// CheckRollback reports what a manual `rollback` would undo, without
// changing anything (spec.md §4.8's `rollback --check`). It looks at the
// kind of the last classified operation rather than the servicing state,
// since by the time an A/B update or runtime update has settled the state
// machine is back at StateProvisioned either way.
func (e *Engine) CheckRollback(status *types.HostStatus) types.RollbackKind {
	switch status.ServicingType {
	case types.ServicingABUpdate:
		if len(status.RollbackChain) > 0 {
			return types.RollbackAB
		}
	case types.ServicingRuntimeUpdate:
		if status.PreviousRuntimeSpec != nil {
			return types.RollbackRuntime
		}
	}
	return types.RollbackNone
}

// RollbackAuto undoes whatever CheckRollback reports, or fails if there is
// nothing to undo — the plain `rollback` verb with no mode flag.
func (e *Engine) RollbackAuto(status *types.HostStatus) error {
	switch e.CheckRollback(status) {
	case types.RollbackAB:
		return e.RollbackAB(status)
	case types.RollbackRuntime:
		return e.RollbackRuntime(status)
	default:
		return types.Errorf(types.KindPrecondition, "engine", "nothing to roll back")
	}
}

// RollbackAB restores the most recent rollback-chain entry: the boot order,
// active volume, and installed spec from just before the last committed
// A/B update.
func (e *Engine) RollbackAB(status *types.HostStatus) error {
	if len(status.RollbackChain) == 0 {
		return types.Errorf(types.KindPrecondition, "engine", "no A/B rollback-chain entry is available")
	}
	snap := status.RollbackChain[0]
	if err := e.d.BootManager.RollbackToServicing(snap.AbActiveVolume); err != nil {
		return err
	}
	status.RollbackChain = status.RollbackChain[1:]
	status.AbActiveVolume = snap.AbActiveVolume
	status.InstalledSpec = snap.Spec
	status.ServicingIndex = snap.ServicingIndex
	return e.d.Store.Save(status)
}

// RollbackRuntime re-applies the installed spec a runtime-update last
// overwrote, undoing sysext/confext/netplan changes the same way
// stageRuntimeUpdate applied them.
func (e *Engine) RollbackRuntime(status *types.HostStatus) error {
	prev := status.PreviousRuntimeSpec
	if prev == nil {
		return types.Errorf(types.KindPrecondition, "engine", "no prior runtime configuration is available")
	}
	if len(prev.OS.Sysexts) > 0 {
		if err := osconfig.RefreshSysexts(e.d.Runner, "/"); err != nil {
			return err
		}
	}
	if len(prev.OS.Confexts) > 0 {
		if err := osconfig.RefreshConfexts(e.d.Runner, "/"); err != nil {
			return err
		}
	}
	if err := osconfig.ApplyNetplan(e.d.FS, e.d.Runner, "/", prev.OS.Netplan); err != nil {
		return err
	}
	status.InstalledSpec = prev
	status.PreviousRuntimeSpec = nil
	return e.d.Store.Save(status)
}
