package storage

import (
	"github.com/microsoft/trident/internal/types"
)

// FilesystemManager creates and grows filesystems on realized devices.
type FilesystemManager struct {
	Runner types.Runner
}

var mkfsBinary = map[string]string{
	"ext4":  "mkfs.ext4",
	"xfs":   "mkfs.xfs",
	"btrfs": "mkfs.btrfs",
	"vfat":  "mkfs.vfat",
}

var growBinary = map[string]string{
	"ext4":  "resize2fs",
	"xfs":   "xfs_growfs",
	"btrfs": "btrfs",
}

// Make formats device with the filesystem type named in cfg. Only
// source=new filesystems ever reach this; source=image devices already
// carry a filesystem written by the streaming pipeline, and source=adopted
// devices are never reformatted.
func (f *FilesystemManager) Make(device string, cfg types.FilesystemConfig) error {
	bin, ok := mkfsBinary[cfg.FSType]
	if !ok {
		return types.Errorf(types.KindFilesystem, "storage", "no mkfs tool known for filesystem type %q", cfg.FSType)
	}
	if _, err := f.Runner.Run(bin, device); err != nil {
		return types.NewError(types.KindFilesystem, "storage", err)
	}
	return nil
}

// Grow extends an already-mounted filesystem to fill its (possibly resized)
// backing device, used after an A/B member grows between updates.
func (f *FilesystemManager) Grow(device, mountPoint string, cfg types.FilesystemConfig) error {
	bin, ok := growBinary[cfg.FSType]
	if !ok {
		return types.Errorf(types.KindFilesystem, "storage", "filesystem type %q does not support online grow", cfg.FSType)
	}
	switch cfg.FSType {
	case "ext4":
		if _, err := f.Runner.Run(bin, device); err != nil {
			return types.NewError(types.KindFilesystem, "storage", err)
		}
	case "btrfs":
		if _, err := f.Runner.Run(bin, "filesystem", "resize", "max", mountPoint); err != nil {
			return types.NewError(types.KindFilesystem, "storage", err)
		}
	default:
		if _, err := f.Runner.Run(bin, mountPoint); err != nil {
			return types.NewError(types.KindFilesystem, "storage", err)
		}
	}
	return nil
}
