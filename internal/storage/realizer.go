package storage

import (
	"github.com/microsoft/trident/internal/types"
)

// Realizer drives a validated Host Configuration's storage section from
// declared intent to real devices, in the dependency order disks must be
// realized in: partitions, then RAID arrays (which sit on partitions), then
// encryption (which sits on partitions or arrays), then verity (which sits
// on encryption or partitions), then filesystems (which sit on any of the
// above) — spec.md §4.4 operations 1 through 8, unordered within the set
// the cross-reference graph actually requires ordering for.
type Realizer struct {
	Partitioner *Partitioner
	Raid        *RaidManager
	Encryptor   *Encryptor
	Verity      *VerityManager
	Filesystems *FilesystemManager
	Mounter     types.Mounter
}

// ResolvedDevices maps every storage entity ID to the device-node path it
// was realized to, for Host Status persistence and the OS configurator's
// mount plan.
type ResolvedDevices map[string]string

// Realize partitions every disk, assembles/creates every RAID array, opens
// every encryption volume, activates every verity target, and formats every
// source=new filesystem, returning the full device-path resolution.
// Realize partitions and assembles sc onto diskDevices, resolving every
// declared storage entity down to a device path. preserveDiskIDs names
// disks that must never be handed to Partitioner.CreateTable — used by an
// A/B update to keep the currently-active, still-booted side untouched;
// a clean install passes nil.
func (r *Realizer) Realize(sc types.StorageConfiguration, diskDevices map[string]string, preserveDiskIDs map[string]bool) (ResolvedDevices, error) {
	resolved := ResolvedDevices{}
	disks := mergeTopLevelAdoption(sc)

	for _, disk := range disks {
		devicePath, ok := diskDevices[disk.ID]
		if !ok {
			return nil, types.Errorf(types.KindConfig, "storage", "no target device given for disk %q", disk.ID)
		}
		if !preserveDiskIDs[disk.ID] {
			if err := r.Partitioner.CreateTable(devicePath, disk); err != nil {
				return nil, err
			}
		}
		paths, err := r.Partitioner.ResolvePartitionPaths(devicePath)
		if err != nil {
			return nil, err
		}
		for id, path := range paths {
			resolved[id] = path
		}
	}

	for _, array := range sc.RaidArrays {
		devicePath, err := r.Raid.Create(array, resolved)
		if err != nil {
			return nil, err
		}
		resolved[array.ID] = devicePath
	}

	for _, enc := range sc.Encryption {
		backing, ok := resolved[enc.DeviceID]
		if !ok {
			return nil, types.Errorf(types.KindConfig, "storage", "encryption volume %q: backing device %q not yet resolved", enc.ID, enc.DeviceID)
		}
		mapperName := "trident-" + enc.ID
		sealed, checkValue, salt, err := r.Encryptor.Enroll(backing, enc)
		if err != nil {
			return nil, err
		}
		if err := r.Encryptor.Open(backing, mapperName, sealed, checkValue, salt, enc.PCR.PCRs); err != nil {
			return nil, err
		}
		resolved[enc.ID] = "/dev/mapper/" + mapperName
	}

	for _, v := range sc.Verity {
		dataDev, ok1 := resolved[v.DataDeviceID]
		hashDev, ok2 := resolved[v.HashDeviceID]
		if !ok1 || !ok2 {
			return nil, types.Errorf(types.KindConfig, "storage", "verity device %q: data or hash device not yet resolved", v.ID)
		}
		rootHash := v.RootHashSource
		if rootHash == "" {
			hash, err := r.Verity.Format(dataDev, hashDev)
			if err != nil {
				return nil, err
			}
			rootHash = hash
		}
		if err := r.Verity.Open(v.Name, dataDev, hashDev, rootHash); err != nil {
			return nil, err
		}
		resolved[v.ID] = "/dev/mapper/" + v.Name
	}

	for _, fs := range sc.Filesystems {
		device, ok := resolved[fs.DeviceID]
		if !ok {
			return nil, types.Errorf(types.KindConfig, "storage", "filesystem %q: backing device %q not yet resolved", fs.ID, fs.DeviceID)
		}
		if fs.Source == types.SourceNew {
			if err := r.Filesystems.Make(device, fs); err != nil {
				return nil, err
			}
		}
	}

	return resolved, nil
}

// mergeTopLevelAdoption folds StorageConfiguration's top-level
// adoptedPartitions list into each referenced partition's own adoption
// matcher, so Partitioner.CreateTable only has to look in one place
// (PartitionConfig.Adoption) regardless of which list an author used.
func mergeTopLevelAdoption(sc types.StorageConfiguration) []types.DiskConfig {
	byPartitionID := map[string]types.AdoptedPartition{}
	for _, a := range sc.AdoptedPartition {
		byPartitionID[a.PartitionID] = a
	}
	disks := make([]types.DiskConfig, len(sc.Disks))
	for i, d := range sc.Disks {
		d.Partitions = append([]types.PartitionConfig(nil), d.Partitions...)
		for j, p := range d.Partitions {
			if p.Adoption != nil {
				continue
			}
			if m, ok := byPartitionID[p.ID]; ok {
				matcher := m
				d.Partitions[j].Adoption = &matcher
			}
		}
		disks[i] = d
	}
	return disks
}

// MountAll mounts every filesystem at its configured mount point. Mount
// order matters for nested mount points like /boot/efi under /, so entries
// are sorted shallowest first.
func (r *Realizer) MountAll(fs []types.FilesystemConfig, resolved ResolvedDevices, targetRoot string) error {
	ordered := sortByMountDepth(fs)
	for _, f := range ordered {
		device, ok := resolved[f.DeviceID]
		if !ok {
			return types.Errorf(types.KindConfig, "storage", "filesystem %q has no resolved device", f.ID)
		}
		opts := f.Options
		if err := r.Mounter.Mount(device, targetRoot+f.MountPoint, f.FSType, opts); err != nil {
			return types.NewError(types.KindFilesystem, "storage", err)
		}
	}
	return nil
}

func sortByMountDepth(fs []types.FilesystemConfig) []types.FilesystemConfig {
	out := make([]types.FilesystemConfig, len(fs))
	copy(out, fs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && depth(out[j].MountPoint) < depth(out[j-1].MountPoint); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func depth(path string) int {
	if path == "/" {
		return 0
	}
	n := 0
	for _, c := range path {
		if c == '/' {
			n++
		}
	}
	return n
}
