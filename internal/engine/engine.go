// Package engine implements the servicing state machine: the sole
// component that ever mutates Host Status's servicingState field, and the
// orchestrator that sequences every other component through stage/finalize
// (spec.md §4.1).
package engine

import (
	"context"

	"github.com/microsoft/trident/internal/boot"
	"github.com/microsoft/trident/internal/cosi"
	"github.com/microsoft/trident/internal/datastore"
	"github.com/microsoft/trident/internal/hooks"
	"github.com/microsoft/trident/internal/osconfig"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/streaming"
	"github.com/microsoft/trident/internal/types"
)

// Deps wires every component the state machine drives. The engine itself
// performs no I/O outside these seams, so its transition logic is a pure
// function of (currentState, verb, diff) plus calls through them.
type Deps struct {
	Log          types.Logger
	Store        datastore.Store
	SafetyGate   *storage.SafetyGate
	Partitioner  *storage.Partitioner
	Realizer     *storage.Realizer
	Mounter      types.Mounter
	Syscall      types.SyscallInterface
	Runner       types.Runner
	FS           types.FS
	BootManager  *boot.Manager
	HookRunner   *hooks.Runner
	HealthChecks *hooks.HealthCheckRunner

	// NewFetcher builds the byte-range Fetcher for an image reference,
	// choosing HTTP or OCI per its URL scheme.
	NewFetcher func(image types.ImageReference) (streaming.Fetcher, error)

	ServicingRoot string // scratch mount point used while staging ("/mnt/newroot")
	PipelineConcurrency int
}

// Engine drives one servicing operation end to end.
type Engine struct {
	d Deps
}

func New(d Deps) *Engine {
	return &Engine{d: d}
}

func (e *Engine) transition(status *types.HostStatus, event string) error {
	to, ok := types.ValidTransition(status.ServicingState, event)
	if !ok {
		return types.Errorf(types.KindPrecondition, "engine",
			"verb %q is not valid from state %q", event, status.ServicingState)
	}
	status.ServicingState = to
	return e.d.Store.Save(status)
}

// Transition applies a named state-machine edge and persists the result.
// Exported for internal/commit, which runs on the boot following Finalize
// and so must reuse the same transition table without duplicating it.
func (e *Engine) Transition(status *types.HostStatus, event string) error {
	return e.transition(status, event)
}

// Stage classifies the requested Host Configuration against the installed
// one and runs the non-disruptive half of whichever servicing type that
// implies. It is idempotent and cancellable. On failure it records the error, clears the pending spec and
// moves the state machine back; partial disk artifacts it already created
// (partitions, device mappings, mounts) are not undone.
func (e *Engine) Stage(ctx context.Context, requested *types.HostConfiguration, diskDevices map[string]string) error {
	status, err := e.d.Store.Load()
	if err != nil {
		return err
	}
	svcType := Classify(status.InstalledSpec, requested)
	status.ServicingType = svcType

	switch svcType {
	case types.ServicingNone:
		e.d.Log.Infof("requested Host Configuration matches installed spec, nothing to do")
		return nil
	case types.ServicingCleanInstall:
		return e.stageCleanInstall(ctx, status, requested, diskDevices)
	case types.ServicingABUpdate:
		return e.stageABUpdate(ctx, status, requested, diskDevices)
	case types.ServicingRuntimeUpdate:
		return e.stageRuntimeUpdate(ctx, status, requested)
	default:
		return types.Errorf(types.KindInternal, "engine", "unreachable ServicingType %q", svcType)
	}
}

func (e *Engine) stageCleanInstall(ctx context.Context, status *types.HostStatus, requested *types.HostConfiguration, diskDevices map[string]string) error {
	if err := e.d.SafetyGate.Check(requested, firstDiskDevice(diskDevices)); err != nil {
		return err
	}
	if err := e.transition(status, "stage"); err != nil {
		return err
	}
	status.PendingSpec = requested

	resolved, err := e.d.Realizer.Realize(requested.Storage, diskDevices, nil)
	if err != nil {
		_ = e.abortTo(status, err)
		return err
	}
	status.PartitionPaths = map[string]string(resolved)

	if err := e.streamImage(ctx, requested, resolved); err != nil {
		_ = e.abortTo(status, err)
		return err
	}

	// abActiveVolume is set iff an A/B volume pair exists (spec.md §3); a
	// clean install without any configured pair leaves it empty.
	if len(requested.Storage.ABVolumePairs) > 0 {
		status.AbActiveVolume = types.VolumeA
	}

	if err := e.configureTarget(requested, status); err != nil {
		_ = e.abortTo(status, err)
		return err
	}

	return e.d.Store.Save(status)
}

func (e *Engine) stageABUpdate(ctx context.Context, status *types.HostStatus, requested *types.HostConfiguration, diskDevices map[string]string) error {
	if err := e.transition(status, "stage"); err != nil {
		return err
	}
	status.PendingSpec = requested

	// Never let a staging failure touch the currently-active, still-booted
	// side: the disks backing each pair's active member are off-limits to
	// Realize's partitioning step.
	activeDisks := storage.ActiveDiskIDs(requested.Storage, status.AbActiveVolume)
	resolved, err := e.d.Realizer.Realize(requested.Storage, diskDevices, activeDisks)
	if err != nil {
		_ = e.abortTo(status, err)
		return err
	}
	for id, path := range resolved {
		status.PartitionPaths[id] = path
	}

	if err := e.streamImage(ctx, requested, resolved); err != nil {
		_ = e.abortTo(status, err)
		return err
	}

	if err := e.configureTarget(requested, status); err != nil {
		_ = e.abortTo(status, err)
		return err
	}

	return e.d.Store.Save(status)
}

func (e *Engine) stageRuntimeUpdate(ctx context.Context, status *types.HostStatus, requested *types.HostConfiguration) error {
	if len(requested.OS.Sysexts) > 0 {
		if err := osconfig.RefreshSysexts(e.d.Runner, "/"); err != nil {
			return err
		}
	}
	if len(requested.OS.Confexts) > 0 {
		if err := osconfig.RefreshConfexts(e.d.Runner, "/"); err != nil {
			return err
		}
	}
	// A runtime-update netplan change applies directly against the live
	// root; there's nothing to chroot into.
	if err := osconfig.ApplyNetplan(e.d.FS, e.d.Runner, "/", requested.OS.Netplan); err != nil {
		return err
	}
	status.PreviousRuntimeSpec = status.InstalledSpec
	status.InstalledSpec = requested
	return e.d.Store.Save(status)
}

// Finalize performs the one disruptive act of the lifecycle: flipping the
// boot-variable state so the next reboot lands on the staged OS.
func (e *Engine) Finalize(ctx context.Context, status *types.HostStatus, requested *types.HostConfiguration) error {
	switch status.ServicingState {
	case types.StateCleanInstallStaged:
		if err := e.d.BootManager.InstallFinalize(status.AbActiveVolume, ""); err != nil {
			return err
		}
	case types.StateABUpdateStaged:
		target := status.AbActiveVolume.Other()
		if err := e.d.BootManager.ABUpdateFinalize(target, ""); err != nil {
			return err
		}
	default:
		return types.Errorf(types.KindPrecondition, "engine", "finalize is not valid from state %q", status.ServicingState)
	}
	return e.transition(status, "finalize")
}

// BootOk advances a finalized clean install to provisioned once the target
// OS has booted and its health checks pass.
func (e *Engine) BootOk(ctx context.Context, status *types.HostStatus, checks []types.HealthCheck) error {
	results := e.d.HealthChecks.RunAll(ctx, checks)
	for _, r := range results {
		if !r.Passed {
			return e.BootFail(status, types.Errorf(types.KindHealthCheck, "engine", "health check %q failed: %s", r.Name, r.Output))
		}
	}
	status.InstalledSpec = status.PendingSpec
	status.PendingSpec = nil
	return e.transition(status, "boot-ok")
}

func (e *Engine) BootFail(status *types.HostStatus, cause error) error {
	status.LastError = types.RecordOf(cause)
	status.PendingSpec = nil
	return e.transition(status, "boot-fail")
}

func (e *Engine) abortTo(status *types.HostStatus, cause error) error {
	status.LastError = types.RecordOf(cause)
	status.PendingSpec = nil
	return e.transition(status, "abort")
}

// streamImage fetches the COSI archive's metadata, builds one pipeline job
// per declared partition that has a resolved device path, and runs them
// concurrently.
func (e *Engine) streamImage(ctx context.Context, hc *types.HostConfiguration, resolved storage.ResolvedDevices) error {
	fetcher, err := e.d.NewFetcher(hc.Image)
	if err != nil {
		return err
	}
	reader := cosi.NewReader(fetcher)
	meta, err := reader.ReadMetadata(ctx, hc.Image.MetadataHash)
	if err != nil {
		return err
	}

	var jobs []streaming.PartitionJob
	for _, img := range meta.Images {
		device, ok := resolved[img.PartitionID]
		if !ok {
			continue
		}
		jobs = append(jobs, streaming.PartitionJob{Entry: img, DevicePath: device})
	}

	pipeline := &streaming.Pipeline{Fetcher: fetcher, FS: e.d.FS, Concurrency: e.d.PipelineConcurrency}
	return pipeline.StreamAll(ctx, jobs)
}

// configureTarget acquires the scoped "newroot" view and applies the OS
// Configuration section, releasing the view on every exit path.
func (e *Engine) configureTarget(hc *types.HostConfiguration, status *types.HostStatus) error {
	rootDeviceID := findRootFilesystemDevice(hc)
	rootDevice, ok := status.PartitionPaths[rootDeviceID]
	if !ok {
		return types.Errorf(types.KindConfig, "engine", "no resolved root filesystem device for configuration")
	}

	scoped, err := osconfig.Acquire(e.d.Mounter, e.d.Syscall, rootDevice, e.d.ServicingRoot)
	if err != nil {
		return err
	}
	defer scoped.Release()

	if err := e.d.Realizer.MountAll(hc.Storage.Filesystems, map[string]string(status.PartitionPaths), e.d.ServicingRoot); err != nil {
		return err
	}
	if err := scoped.Enter(); err != nil {
		return err
	}

	if err := e.d.HookRunner.Run(hooks.StagePostProvision, hc.Scripts.PostProvision, e.d.ServicingRoot); err != nil {
		return err
	}
	if err := e.d.HookRunner.Run(hooks.StagePostConfigure, hc.Scripts.PostConfigure, e.d.ServicingRoot); err != nil {
		return err
	}
	return nil
}

func findRootFilesystemDevice(hc *types.HostConfiguration) string {
	for _, fs := range hc.Storage.Filesystems {
		if fs.MountPoint == "/" {
			return fs.DeviceID
		}
	}
	return ""
}

func firstDiskDevice(diskDevices map[string]string) string {
	for _, v := range diskDevices {
		return v
	}
	return ""
}
