package cosi

import (
	"bytes"

	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/microsoft/trident/internal/types"
)

// DiskPlan is the full-disk layout derived from a COSI archive's embedded
// GPT header, used by the `stream-disk` verb to partition a target disk
// directly from archive metadata rather than a Host Configuration.
type DiskPlan struct {
	Table      *gpt.Table
	Partitions []types.CosiImageEntry
}

// DeriveDiskPlan parses the GPT header bytes embedded in a COSI metadata
// document and returns that table alongside the metadata's image entries,
// in metadata order. Table entries and image entries are not matched to
// each other.
func DeriveDiskPlan(meta *types.CosiMetadata) (*DiskPlan, error) {
	if len(meta.GptHeader) == 0 {
		return nil, types.Errorf(types.KindConfig, "cosi", "archive metadata has no embedded GPT header; stream-disk requires one")
	}
	table, err := gpt.Read(bytes.NewReader(meta.GptHeader), len(meta.GptHeader), 512)
	if err != nil {
		return nil, types.NewError(types.KindIntegrity, "cosi", err)
	}
	return &DiskPlan{Table: table, Partitions: meta.Images}, nil
}

// SmallestFittingDisk picks the smallest enumerated disk (by sizeBytes) that
// is still large enough to hold the plan's total uncompressed payload, the
// rule `stream-disk` uses when no explicit target device is given.
func SmallestFittingDisk(plan *DiskPlan, disks []DiskInfo) (*DiskInfo, error) {
	var total int64
	for _, img := range plan.Partitions {
		total += img.UncompressedLength
	}
	var best *DiskInfo
	for i := range disks {
		d := &disks[i]
		if d.SizeBytes < uint64(total) {
			continue
		}
		if best == nil || d.SizeBytes < best.SizeBytes {
			best = d
		}
	}
	if best == nil {
		return nil, types.Errorf(types.KindPrecondition, "cosi", "no enumerated disk is large enough to hold the archive (need at least %d bytes)", total)
	}
	return best, nil
}

// AsDiskConfig projects the plan's partitions into the same DiskConfig shape
// a Host Configuration would declare, so `stream-disk` can reuse
// storage.Partitioner.CreateTable instead of a second sgdisk call site.
func (p *DiskPlan) AsDiskConfig() types.DiskConfig {
	parts := make([]types.PartitionConfig, 0, len(p.Partitions))
	for _, img := range p.Partitions {
		sizeMiB := uint64(img.UncompressedLength) / (1024 * 1024)
		if sizeMiB == 0 {
			sizeMiB = 1
		}
		parts = append(parts, types.PartitionConfig{
			ID:      img.PartitionID,
			Type:    img.PartitionType,
			SizeMiB: sizeMiB,
		})
	}
	return types.DiskConfig{Partitions: parts}
}

// DiskInfo is the subset of ghw's block-device inventory the disk plan
// chooser needs; internal/storage's enumerator produces these.
type DiskInfo struct {
	Name      string
	SizeBytes uint64
	IsRemovable bool
}
