package storage

import (
	"fmt"
	"strings"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/types"
)

// RaidManager assembles and inspects software RAID arrays via mdadm,
// shelled through the Runner seam like every other external tool here.
type RaidManager struct {
	Runner types.Runner
}

// Create builds a new array from array's configured members, resolving
// each member's logical ID to a device path via partitionPaths.
func (r *RaidManager) Create(array types.RaidArrayConfig, partitionPaths map[string]string) (string, error) {
	devicePath := fmt.Sprintf("%s/%s", constants.DefaultRAIDArrayBasePath, array.Name)
	members := make([]string, 0, len(array.MemberPartIDs))
	for _, id := range array.MemberPartIDs {
		path, ok := partitionPaths[id]
		if !ok {
			return "", types.Errorf(types.KindBlockDevice, "storage", "raid array %q: member %q has no resolved device path", array.ID, id)
		}
		members = append(members, path)
	}
	args := []string{
		"--create", devicePath,
		"--level=" + strings.TrimPrefix(array.Level, "raid"),
		fmt.Sprintf("--raid-devices=%d", len(members)),
		"--metadata=1.2",
		"--run",
	}
	args = append(args, members...)
	if _, err := r.Runner.Run("mdadm", args...); err != nil {
		return "", types.NewError(types.KindBlockDevice, "storage", err)
	}
	return devicePath, nil
}

// Assemble reattaches an already-created array at boot/update time, rather
// than recreating it.
func (r *RaidManager) Assemble(array types.RaidArrayConfig, partitionPaths map[string]string) (string, error) {
	devicePath := fmt.Sprintf("%s/%s", constants.DefaultRAIDArrayBasePath, array.Name)
	args := []string{"--assemble", devicePath}
	for _, id := range array.MemberPartIDs {
		if path, ok := partitionPaths[id]; ok {
			args = append(args, path)
		}
	}
	if _, err := r.Runner.Run("mdadm", args...); err != nil {
		return "", types.NewError(types.KindBlockDevice, "storage", err)
	}
	return devicePath, nil
}

// Detail runs `mdadm --detail` and returns its raw output for the RAID
// rebuild controller to parse member state out of.
func (r *RaidManager) Detail(devicePath string) ([]byte, error) {
	out, err := r.Runner.Run("mdadm", "--detail", devicePath)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	return out, nil
}

// ReplaceMember fails out a missing/faulty member and adds its replacement,
// the two-step mdadm sequence the rebuild controller drives after a disk
// swap.
func (r *RaidManager) ReplaceMember(devicePath, oldMember, newMember string) error {
	_, _ = r.Runner.Run("mdadm", devicePath, "--fail", oldMember, "--remove", oldMember)
	if _, err := r.Runner.Run("mdadm", devicePath, "--add", newMember); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}
