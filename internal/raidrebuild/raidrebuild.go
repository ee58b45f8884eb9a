// Package raidrebuild detects a replaced disk underneath an existing RAID
// array and drives the array back to fully redundant (spec.md §4.5).
package raidrebuild

import (
	"github.com/microsoft/trident/internal/cosi"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/types"
)

// KnownMember is a previously-seen RAID member, as recorded in Host Status
// the last time the array was fully assembled.
type KnownMember struct {
	ArrayID     string
	PartitionID string
	DeviceUUID  string
}

// Controller diffs the current block-device UUID set against the
// last-known set and repairs any array missing a member.
type Controller struct {
	Enumerator storage.Enumerator
	Raid       *storage.RaidManager
}

// Detect returns the known members whose device UUID is no longer present
// among the enumerated disks — candidates for replacement.
func (c *Controller) Detect(known []KnownMember, currentUUIDs map[string]bool) []KnownMember {
	var missing []KnownMember
	for _, m := range known {
		if !currentUUIDs[m.DeviceUUID] {
			missing = append(missing, m)
		}
	}
	return missing
}

// Rebuild re-adds a replacement device in place of a missing array member.
func (c *Controller) Rebuild(array types.RaidArrayConfig, arrayDevicePath, missingDevicePath, replacementDevicePath string) error {
	return c.Raid.ReplaceMember(arrayDevicePath, missingDevicePath, replacementDevicePath)
}

// CurrentUUIDs builds the UUID presence set Detect needs from the live
// block-device inventory; disks without a discoverable filesystem/RAID UUID
// are omitted. The set is keyed by UUID only and does not record which disk
// each UUID came from.
func CurrentUUIDs(disks []cosi.DiskInfo, uuidOf func(name string) (string, error)) map[string]bool {
	set := map[string]bool{}
	for _, d := range disks {
		if uuid, err := uuidOf(d.Name); err == nil && uuid != "" {
			set[uuid] = true
		}
	}
	return set
}
