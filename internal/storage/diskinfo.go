// Package storage realizes a validated Host Configuration's storage section
// onto real block devices: partitioning, RAID assembly, encryption,
// dm-verity, and filesystem placement (spec.md §4.4).
package storage

import (
	"strings"

	"github.com/jaypipes/ghw"

	"github.com/microsoft/trident/internal/cosi"
	"github.com/microsoft/trident/internal/types"
)

// Enumerator lists the block devices visible to this host, the seam the
// safety gate and `stream-disk`'s smallest-fitting-disk rule both depend on.
type Enumerator interface {
	ListDisks() ([]cosi.DiskInfo, error)
}

// GhwEnumerator backs Enumerator with jaypipes/ghw's block-device inventory,
// the library the rest of the retrieval pack already reaches for host
// hardware introspection.
type GhwEnumerator struct{}

var _ Enumerator = GhwEnumerator{}

func (GhwEnumerator) ListDisks() ([]cosi.DiskInfo, error) {
	block, err := ghw.Block()
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	disks := make([]cosi.DiskInfo, 0, len(block.Disks))
	for _, d := range block.Disks {
		disks = append(disks, cosi.DiskInfo{
			Name:        "/dev/" + d.Name,
			SizeBytes:   d.SizeBytes,
			IsRemovable: d.IsRemovable,
		})
	}
	return disks, nil
}

// IsLiveMedia reports whether d looks like the install medium itself
// (removable, or the same device as rootDevice) rather than a target disk.
// stream-disk uses it when choosing its target; the clean-install safety
// gate does its own live-media check from /proc/mounts.
func IsLiveMedia(d cosi.DiskInfo, rootDevice string) bool {
	if d.IsRemovable {
		return true
	}
	return strings.TrimSpace(d.Name) == strings.TrimSpace(rootDevice)
}
