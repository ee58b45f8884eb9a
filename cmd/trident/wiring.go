package main

import (
	"strings"

	"github.com/microsoft/trident/internal/boot"
	"github.com/microsoft/trident/internal/commit"
	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/datastore"
	"github.com/microsoft/trident/internal/engine"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/hooks"
	"github.com/microsoft/trident/internal/logging"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/streaming"
	"github.com/microsoft/trident/internal/types"
)

// newFetcher dispatches on URL scheme the way a Host Configuration's image
// reference or a stream-disk request names its source: "oci://" resolves
// an OCI artifact, everything else is a ranged HTTP(S) fetch.
func newFetcher(url string) (streaming.Fetcher, error) {
	if strings.HasPrefix(url, "oci://") {
		return streaming.NewOCIFetcher(strings.TrimPrefix(url, "oci://"))
	}
	return streaming.NewHTTPFetcher(url, constants.DefaultFetchRetryBudget), nil
}

func newFetcherForImage(image types.ImageReference) (streaming.Fetcher, error) {
	return newFetcher(image.URL)
}

// openStore opens the Host Status datastore exclusively for a servicing
// write path, or shared for a read-only one (`get`, `rollback --check`).
func openStore(cfg *RunConfig, shared bool) (datastore.Store, error) {
	fs := fsutil.NewOS()
	if shared {
		return datastore.OpenShared(fs, cfg.DatastorePath)
	}
	return datastore.Open(fs, cfg.DatastorePath)
}

// buildEngine wires one *engine.Engine from cfg, the production
// implementation every servicing verb drives: real filesystem, real
// external-tool shelling, real mounts, real UEFI variables.
func buildEngine(cfg *RunConfig, log types.Logger, store datastore.Store) *engine.Engine {
	fs := fsutil.NewOS()
	runner := fsutil.ExecRunner{}
	mounter := fsutil.NewKubeMounter()
	sc := fsutil.RealSyscall{}
	enumerator := storage.GhwEnumerator{}

	partitioner := &storage.Partitioner{Runner: runner}
	realizer := &storage.Realizer{
		Partitioner: partitioner,
		Raid:        &storage.RaidManager{Runner: runner},
		Encryptor:   &storage.Encryptor{Runner: runner},
		Verity:      &storage.VerityManager{Runner: runner},
		Filesystems: &storage.FilesystemManager{Runner: runner},
		Mounter:     mounter,
	}
	bootManager := &boot.Manager{Vars: boot.RealUEFIVars{}, Layout: boot.ESPLayout{MountPoint: constants.ESPMountPoint}}

	return engine.New(engine.Deps{
		Log:                 log,
		Store:               store,
		SafetyGate:          &storage.SafetyGate{Enumerator: enumerator, FS: fs},
		Partitioner:         partitioner,
		Realizer:            realizer,
		Mounter:             mounter,
		Syscall:             sc,
		Runner:              runner,
		FS:                  fs,
		BootManager:         bootManager,
		HookRunner:          &hooks.Runner{Log: log},
		HealthChecks:        &hooks.HealthCheckRunner{Runner: runner},
		NewFetcher:          newFetcherForImage,
		ServicingRoot:       cfg.ServicingRoot,
		PipelineConcurrency: cfg.PipelineConcurrency,
	})
}

// buildCommitController wires the post-finalize boot-verification
// controller around the same engine instance, the way `trident commit`
// (invoked by a systemd unit on every boot) needs.
func buildCommitController(cfg *RunConfig, log types.Logger, store datastore.Store, eng *engine.Engine) *commit.Controller {
	runner := fsutil.ExecRunner{}
	bootManager := &boot.Manager{Vars: boot.RealUEFIVars{}, Layout: boot.ESPLayout{MountPoint: constants.ESPMountPoint}}
	return commit.New(commit.Deps{
		Log:          log,
		Store:        store,
		Engine:       eng,
		BootManager:  bootManager,
		HealthChecks: &hooks.HealthCheckRunner{Runner: runner},
		FS:           fsutil.NewOS(),
		Clock:        &fsutil.RealClock{},
	})
}

func newLogger(cfg *RunConfig) types.Logger {
	return logging.New(cfg.LogLevel)
}

// diskDevicesFromConfig builds the disk-ID -> device-path map engine.Stage
// needs directly from the Host Configuration's own disk declarations: each
// DiskConfig already names the real device node it targets.
func diskDevicesFromConfig(hc *types.HostConfiguration) map[string]string {
	m := make(map[string]string, len(hc.Storage.Disks))
	for _, d := range hc.Storage.Disks {
		m[d.ID] = d.Device
	}
	return m
}
