package storage

import (
	"strings"

	"github.com/microsoft/trident/internal/types"
)

// liveMediaFSTypes are the root filesystem types a ramdisk/live-media boot
// actually mounts "/" as. A persisted install always has a real block
// device backing "/" instead.
var liveMediaFSTypes = map[string]bool{
	"overlay":  true,
	"squashfs": true,
	"tmpfs":    true,
	"iso9660":  true,
}

// SafetyGate runs the clean-install precondition check of spec.md §4.4 op 1:
// refuse to partition a disk unless the process is running from
// ramdisk/live media, multiboot is configured together with adopted
// partitions, or internalParams.allowPartitionOnDisk overrides the gate.
type SafetyGate struct {
	Enumerator Enumerator
	FS         types.FS
}

// Check validates that targetDevice is safe to partition given hc and the
// current boot environment.
func (g *SafetyGate) Check(hc *types.HostConfiguration, targetDevice string) error {
	if hc.Internal.AllowPartitionOnDisk {
		return nil
	}

	live, err := g.runningFromLiveMedia()
	if err != nil {
		return err
	}
	if live {
		return nil
	}

	if hc.Internal.MultibootOSIndex > 0 && len(hc.Storage.AdoptedPartition) > 0 {
		return nil
	}

	disks, err := g.Enumerator.ListDisks()
	if err != nil {
		return err
	}
	found := false
	for i := range disks {
		if disks[i].Name == targetDevice {
			found = true
			break
		}
	}
	if !found {
		return types.Errorf(types.KindPrecondition, "storage", "target device %s was not found among enumerated disks", targetDevice)
	}
	return types.Errorf(types.KindPrecondition, "storage",
		"refusing to partition %s: not running from ramdisk/live media; configure multiboot with adopted partitions or set internalParams.allowPartitionOnDisk", targetDevice)
}

// runningFromLiveMedia inspects the servicing OS's own root mount: a
// ramdisk/live-media boot always mounts "/" as overlay, squashfs, tmpfs, or
// a CD/DVD image, never a persisted block device.
func (g *SafetyGate) runningFromLiveMedia() (bool, error) {
	data, err := g.FS.ReadFile("/proc/mounts")
	if err != nil {
		return false, types.NewError(types.KindInternal, "storage", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "/" {
			continue
		}
		return liveMediaFSTypes[fields[2]], nil
	}
	return false, nil
}
