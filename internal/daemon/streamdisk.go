package daemon

import (
	"context"
	"encoding/json"

	"github.com/microsoft/trident/internal/cosi"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/streaming"
	"github.com/microsoft/trident/internal/types"
)

// streamDisk fetches a COSI archive and reproduces its disk verbatim on the
// smallest fitting disk, with no Host Configuration involved (spec.md §6
// scenario 5). It always emits Started, zero or more Log frames, and
// exactly one Completed frame, never returning an error itself — every
// failure is reported as Completed{ok:false}.
func (s *Server) streamDisk(ctx context.Context, req StreamDiskRequest, enc *json.Encoder) {
	emit := func(f Frame) { _ = enc.Encode(f) }
	logf := func(level, msg string) {
		emit(Frame{Type: FrameLog, Log: &LogFrame{Level: level, Module: "daemon", Message: msg}})
	}
	fail := func(err error) {
		emit(Frame{Type: FrameCompleted, Completed: &CompletedFrame{Ok: false, Error: err.Error()}})
	}

	emit(Frame{Type: FrameStarted})

	fetcher, err := s.d.NewFetcher(req.ImageURL)
	if err != nil {
		fail(err)
		return
	}
	logf("info", "fetching archive metadata")
	reader := cosi.NewReader(fetcher)
	meta, err := reader.ReadMetadata(ctx, req.MetadataHash)
	if err != nil {
		fail(err)
		return
	}

	plan, err := cosi.DeriveDiskPlan(meta)
	if err != nil {
		fail(err)
		return
	}

	disks, err := s.d.Enumerator.ListDisks()
	if err != nil {
		fail(err)
		return
	}
	target, err := cosi.SmallestFittingDisk(plan, disks)
	if err != nil {
		fail(err)
		return
	}
	if storage.IsLiveMedia(*target, s.d.RootDevice) {
		fail(types.Errorf(types.KindPrecondition, "daemon", "selected disk %s is the live boot medium", target.Name))
		return
	}
	logf("info", "selected target disk "+target.Name)

	if err := s.d.Partitioner.CreateTable(target.Name, plan.AsDiskConfig()); err != nil {
		fail(err)
		return
	}
	paths, err := s.d.Partitioner.ResolvePartitionPaths(target.Name)
	if err != nil {
		fail(err)
		return
	}

	var jobs []streaming.PartitionJob
	for _, img := range plan.Partitions {
		device, ok := paths[img.PartitionID]
		if !ok {
			fail(types.Errorf(types.KindConfig, "daemon", "no resolved device path for partition %q", img.PartitionID))
			return
		}
		jobs = append(jobs, streaming.PartitionJob{Entry: img, DevicePath: device})
	}

	logf("info", "streaming partitions")
	pipeline := &streaming.Pipeline{Fetcher: fetcher, FS: s.d.FS, Concurrency: s.d.PipelineConcurrency}
	if err := pipeline.StreamAll(ctx, jobs); err != nil {
		fail(err)
		return
	}

	// Writing a new disk image always requires a reboot to pick it up. The
	// daemon never reboots by itself: it only reports RebootRequired, and
	// the request's HandlesReboot field is not consulted.
	emit(Frame{Type: FrameCompleted, Completed: &CompletedFrame{Ok: true, RebootRequired: true}})
}
