package storage

import (
	"fmt"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/microsoft/trident/internal/types"
)

// Partitioner creates the GPT and partitions named by a disk's
// configuration and resolves each one to a stable PARTUUID-backed path.
type Partitioner struct {
	Runner types.Runner
}

// partitionTypeGUID maps the Host Configuration's partition type tag to the
// GPT partition type GUID sgdisk expects on its -t flag.
var partitionTypeGUID = map[string]string{
	"esp":            "C12A7328-F81F-11D2-BA4B-00A0C93EC93B",
	"linux-generic":  "0FC63DAF-8483-4772-8E79-3D69D8477DE4",
	"root":           "4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709",
	"root-verity":    "2C7357ED-EBD2-46D9-AEC1-23D437EC2BF5",
	"usr":            "8484680C-9521-48C6-9C11-B0720656F69E",
	"usr-verity":     "77FF5F63-E7B6-4633-ACF4-1565B864C0E6",
	"state":          "0FC63DAF-8483-4772-8E79-3D69D8477DE4",
	"swap":           "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F",
}

// CreateTable writes a fresh GPT and every partition of disk onto device by
// shelling sgdisk.
// CreateTable writes disk's full partition table to device. sgdisk
// --zap-all clears only the partition table metadata, not the underlying
// sectors: a partition re-created at its original start/end LBA keeps its
// contents, which is how an adopted partition survives the zap. Every
// other partition already on device that isn't named in disk.Partitions is
// discarded, per spec.md §4.4 op 2/3.
func (p *Partitioner) CreateTable(device string, disk types.DiskConfig) error {
	adopted := map[string]types.AdoptedPartition{}
	for _, part := range disk.Partitions {
		if part.Adoption != nil {
			adopted[part.ID] = *part.Adoption
		}
	}

	var ranges map[string][2]uint64
	if len(adopted) > 0 {
		var err error
		ranges, err = p.resolveAdoptedRanges(device, adopted)
		if err != nil {
			return err
		}
	}

	args := []string{"--zap-all", device}
	for i, part := range disk.Partitions {
		num := i + 1
		guid, ok := partitionTypeGUID[part.Type]
		if !ok {
			guid = partitionTypeGUID["linux-generic"]
		}
		var partSpec string
		if r, ok := ranges[part.ID]; ok {
			partSpec = fmt.Sprintf("%d:%d:%d", num, r[0], r[1])
		} else {
			sizeArg := "0"
			if part.SizeMiB > 0 {
				sizeArg = fmt.Sprintf("+%dMiB", part.SizeMiB)
			}
			partSpec = fmt.Sprintf("%d:0:%s", num, sizeArg)
		}
		args = append(args,
			"-n", partSpec,
			"-t", fmt.Sprintf("%d:%s", num, guid),
			"-c", fmt.Sprintf("%d:%s", num, part.ID),
		)
	}
	if _, err := p.Runner.Run("sgdisk", args...); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	if _, err := p.Runner.Run("partprobe", device); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}

// resolveAdoptedRanges matches each adopted partition against device's
// current GPT by label or UUID, returning its (start, end) LBA so
// CreateTable can recreate it in place. Fails with ConfigError on zero or
// more than one match (spec.md §4.4 op 2).
func (p *Partitioner) resolveAdoptedRanges(device string, adopted map[string]types.AdoptedPartition) (map[string][2]uint64, error) {
	disk, err := diskfs.Open(device)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	defer disk.Close()

	table, err := disk.GetPartitionTable()
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}

	ranges := map[string][2]uint64{}
	for id, m := range adopted {
		var match *gpt.Partition
		count := 0
		for _, part := range table.GetPartitions() {
			gp, ok := part.(*gpt.Partition)
			if !ok {
				continue
			}
			if (m.MatchLabel != "" && gp.Name == m.MatchLabel) ||
				(m.MatchUUID != "" && strings.EqualFold(gp.GUID, m.MatchUUID)) {
				match = gp
				count++
			}
		}
		switch count {
		case 0:
			return nil, types.Errorf(types.KindConfig, "storage", "adopted partition %q matched no existing partition on %s", id, device)
		case 1:
			ranges[id] = [2]uint64{match.Start, match.End}
		default:
			return nil, types.Errorf(types.KindConfig, "storage", "adopted partition %q matched %d partitions on %s, want exactly one", id, count, device)
		}
	}
	return ranges, nil
}

// ResolvePartitionPaths reads the GPT back with go-diskfs (rather than
// re-parsing sgdisk's own stdout) and returns partition ID ->
// /dev/disk/by-partuuid path.
func (p *Partitioner) ResolvePartitionPaths(device string) (map[string]string, error) {
	disk, err := diskfs.Open(device)
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}
	defer disk.Close()

	table, err := disk.GetPartitionTable()
	if err != nil {
		return nil, types.NewError(types.KindBlockDevice, "storage", err)
	}

	paths := map[string]string{}
	for _, part := range table.GetPartitions() {
		gp, ok := part.(*gpt.Partition)
		if !ok || gp.Name == "" {
			continue
		}
		paths[gp.Name] = "/dev/disk/by-partuuid/" + strings.ToLower(gp.GUID)
	}
	return paths, nil
}

// partitionPrefix returns the device-node partition-number prefix, adding a
// "p" separator for devices ending in a digit (/dev/nvme0n1 -> ...n1p,
// /dev/sda -> ...sda).
func partitionPrefix(device string) string {
	if len(device) == 0 {
		return device
	}
	last := device[len(device)-1]
	if last >= '0' && last <= '9' {
		return device + "p"
	}
	return device
}
