package storage

import "github.com/microsoft/trident/internal/types"

// InactiveMember returns the device ID of pair's currently-inactive member,
// the one an A/B update stages into.
func InactiveMember(pair types.ABVolumePair, active types.AbActiveVolume) string {
	if active == types.VolumeA {
		return pair.VolumeBID
	}
	return pair.VolumeAID
}

// ActiveMember returns the device ID of pair's currently-active member.
func ActiveMember(pair types.ABVolumePair, active types.AbActiveVolume) string {
	if active == types.VolumeA {
		return pair.VolumeAID
	}
	return pair.VolumeBID
}

// FindPair looks up the A/B pair a device ID belongs to, if any.
func FindPair(pairs []types.ABVolumePair, deviceID string) (types.ABVolumePair, bool) {
	for _, p := range pairs {
		if p.VolumeAID == deviceID || p.VolumeBID == deviceID {
			return p, true
		}
	}
	return types.ABVolumePair{}, false
}

// backingDiskIDs resolves a device ID down to the disk(s) whose partition
// table physically holds it, walking through RAID/encryption/verity layers
// the same way a size derivation would.
func backingDiskIDs(sc types.StorageConfiguration, deviceID string, depth int) map[string]bool {
	if depth > 8 {
		return nil // cycle guard; a cyclic reference resolves to no disks
	}
	for _, d := range sc.Disks {
		for _, p := range d.Partitions {
			if p.ID == deviceID {
				return map[string]bool{d.ID: true}
			}
		}
	}
	for _, r := range sc.RaidArrays {
		if r.ID != deviceID {
			continue
		}
		out := map[string]bool{}
		for _, m := range r.MemberPartIDs {
			for id := range backingDiskIDs(sc, m, depth+1) {
				out[id] = true
			}
		}
		return out
	}
	for _, e := range sc.Encryption {
		if e.ID == deviceID {
			return backingDiskIDs(sc, e.DeviceID, depth+1)
		}
	}
	for _, v := range sc.Verity {
		if v.ID != deviceID {
			continue
		}
		out := backingDiskIDs(sc, v.DataDeviceID, depth+1)
		for id := range backingDiskIDs(sc, v.HashDeviceID, depth+1) {
			out[id] = true
		}
		return out
	}
	return nil
}

// ActiveDiskIDs returns the disk IDs backing the currently-active member of
// every configured A/B volume pair. An A/B update must never hand one of
// these to Partitioner.CreateTable: that disk holds the volume the running
// system booted from.
func ActiveDiskIDs(sc types.StorageConfiguration, active types.AbActiveVolume) map[string]bool {
	out := map[string]bool{}
	for _, pair := range sc.ABVolumePairs {
		for id := range backingDiskIDs(sc, ActiveMember(pair, active), 0) {
			out[id] = true
		}
	}
	return out
}
