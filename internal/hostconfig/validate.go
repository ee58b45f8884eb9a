package hostconfig

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/microsoft/trident/internal/types"
)

// deviceGraph indexes every storage entity by its declared ID so
// cross-reference resolution and cycle-free size derivation are O(1)
// lookups instead of repeated linear scans.
type deviceGraph struct {
	partitions map[string]*types.PartitionConfig
	diskOf     map[string]string // partition ID -> disk ID
	raid       map[string]*types.RaidArrayConfig
	encryption map[string]*types.EncryptionConfig
	verity     map[string]*types.VerityConfig
	filesystem map[string]*types.FilesystemConfig
}

func buildGraph(hc *types.HostConfiguration) *deviceGraph {
	g := &deviceGraph{
		partitions: map[string]*types.PartitionConfig{},
		diskOf:     map[string]string{},
		raid:       map[string]*types.RaidArrayConfig{},
		encryption: map[string]*types.EncryptionConfig{},
		verity:     map[string]*types.VerityConfig{},
		filesystem: map[string]*types.FilesystemConfig{},
	}
	for di := range hc.Storage.Disks {
		d := &hc.Storage.Disks[di]
		for pi := range d.Partitions {
			p := &d.Partitions[pi]
			g.partitions[p.ID] = p
			g.diskOf[p.ID] = d.ID
		}
	}
	for i := range hc.Storage.RaidArrays {
		g.raid[hc.Storage.RaidArrays[i].ID] = &hc.Storage.RaidArrays[i]
	}
	for i := range hc.Storage.Encryption {
		g.encryption[hc.Storage.Encryption[i].ID] = &hc.Storage.Encryption[i]
	}
	for i := range hc.Storage.Verity {
		g.verity[hc.Storage.Verity[i].ID] = &hc.Storage.Verity[i]
	}
	for i := range hc.Storage.Filesystems {
		g.filesystem[hc.Storage.Filesystems[i].ID] = &hc.Storage.Filesystems[i]
	}
	return g
}

// resolves reports whether id names any known storage entity.
func (g *deviceGraph) resolves(id string) bool {
	if _, ok := g.partitions[id]; ok {
		return true
	}
	if _, ok := g.raid[id]; ok {
		return true
	}
	if _, ok := g.encryption[id]; ok {
		return true
	}
	if _, ok := g.verity[id]; ok {
		return true
	}
	return false
}

// sizeMiB resolves a device ID down to an effective size, recursing through
// RAID/LUKS/verity layers. Returns ok=false if the chain bottoms out in
// something without a derivable size (e.g. an adopted partition, whose size
// is only known once the real disk is probed at realization time).
func (g *deviceGraph) sizeMiB(id string, depth int) (uint64, bool) {
	if depth > 8 {
		return 0, false // cycle guard; a cyclic reference yields no derivable size
	}
	if p, ok := g.partitions[id]; ok {
		if p.Adoption != nil {
			return 0, false
		}
		return p.SizeMiB, true
	}
	if r, ok := g.raid[id]; ok {
		var min uint64
		first := true
		for _, m := range r.MemberPartIDs {
			s, ok := g.sizeMiB(m, depth+1)
			if !ok {
				return 0, false
			}
			if first || s < min {
				min = s
				first = false
			}
		}
		return min, !first
	}
	if e, ok := g.encryption[id]; ok {
		return g.sizeMiB(e.DeviceID, depth+1)
	}
	if v, ok := g.verity[id]; ok {
		return g.sizeMiB(v.DataDeviceID, depth+1)
	}
	return 0, false
}

// Validate checks every invariant in spec.md §3 against a parsed Host
// Configuration, aggregating every failure found into one multierror.Error
// rather than stopping at the first.
func Validate(hc *types.HostConfiguration) error {
	var result *multierror.Error
	g := buildGraph(hc)

	result = checkUniqueIDs(hc, result)
	result = checkCrossReferences(hc, g, result)
	result = checkABVolumePairs(hc, g, result)
	result = checkStatePartitionNotInABPair(hc, result)
	result = checkVerityImpliesReadOnly(hc, g, result)
	result = checkAdoptionMatchers(hc, result)
	result = checkSELinuxExtensionConflict(hc, result)

	return result.ErrorOrNil()
}

func checkUniqueIDs(hc *types.HostConfiguration, result *multierror.Error) *multierror.Error {
	seen := map[string]string{} // id -> kind, for a useful collision message
	add := func(id, kind string) {
		if id == "" {
			return
		}
		if prev, ok := seen[id]; ok {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"duplicate storage ID %q: declared as both %s and %s", id, prev, kind))
			return
		}
		seen[id] = kind
	}
	for _, d := range hc.Storage.Disks {
		add(d.ID, "disk")
		for _, p := range d.Partitions {
			add(p.ID, "partition")
		}
	}
	for _, r := range hc.Storage.RaidArrays {
		add(r.ID, "raid array")
	}
	for _, e := range hc.Storage.Encryption {
		add(e.ID, "encryption volume")
	}
	for _, v := range hc.Storage.Verity {
		add(v.ID, "verity device")
	}
	for _, f := range hc.Storage.Filesystems {
		add(f.ID, "filesystem")
	}
	for _, ab := range hc.Storage.ABVolumePairs {
		add(ab.ID, "A/B volume pair")
	}
	return result
}

func checkCrossReferences(hc *types.HostConfiguration, g *deviceGraph, result *multierror.Error) *multierror.Error {
	ref := func(id, from string) {
		if id == "" {
			return
		}
		if !g.resolves(id) {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"%s references unresolvable device ID %q", from, id))
		}
	}
	for _, r := range hc.Storage.RaidArrays {
		for _, m := range r.MemberPartIDs {
			ref(m, fmt.Sprintf("raid array %q", r.ID))
		}
	}
	for _, e := range hc.Storage.Encryption {
		ref(e.DeviceID, fmt.Sprintf("encryption volume %q", e.ID))
	}
	for _, v := range hc.Storage.Verity {
		ref(v.DataDeviceID, fmt.Sprintf("verity device %q", v.ID))
		ref(v.HashDeviceID, fmt.Sprintf("verity device %q", v.ID))
	}
	for _, f := range hc.Storage.Filesystems {
		ref(f.DeviceID, fmt.Sprintf("filesystem %q", f.ID))
	}
	for _, s := range hc.Storage.Swap {
		ref(s.DeviceID, "swap entry")
	}
	for _, ab := range hc.Storage.ABVolumePairs {
		ref(ab.VolumeAID, fmt.Sprintf("A/B volume pair %q", ab.ID))
		ref(ab.VolumeBID, fmt.Sprintf("A/B volume pair %q", ab.ID))
	}
	return result
}

func checkABVolumePairs(hc *types.HostConfiguration, g *deviceGraph, result *multierror.Error) *multierror.Error {
	memberOf := map[string]string{} // device ID -> pair ID it already belongs to
	for _, ab := range hc.Storage.ABVolumePairs {
		for _, dev := range []string{ab.VolumeAID, ab.VolumeBID} {
			if dev == "" {
				continue
			}
			if prev, ok := memberOf[dev]; ok {
				result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
					"device %q belongs to more than one A/B volume pair (%s and %s)", dev, prev, ab.ID))
				continue
			}
			memberOf[dev] = ab.ID
		}
		aSize, aOK := g.sizeMiB(ab.VolumeAID, 0)
		bSize, bOK := g.sizeMiB(ab.VolumeBID, 0)
		if aOK && bOK && aSize != bSize {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"A/B volume pair %q members differ in size (%d MiB vs %d MiB)", ab.ID, aSize, bSize))
		}
	}
	return result
}

func checkStatePartitionNotInABPair(hc *types.HostConfiguration, result *multierror.Error) *multierror.Error {
	statePartitions := map[string]bool{}
	for _, d := range hc.Storage.Disks {
		for _, p := range d.Partitions {
			if p.Type == "state" {
				statePartitions[p.ID] = true
			}
		}
	}
	for _, ab := range hc.Storage.ABVolumePairs {
		if statePartitions[ab.VolumeAID] || statePartitions[ab.VolumeBID] {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"the state partition may never be a member of A/B volume pair %q", ab.ID))
		}
	}
	return result
}

// verityDataDevices collects into one set every verity device's own ID and
// the ID of its data device, so a filesystem mounted directly on the data
// device (rather than through the verity mapper) is still caught.
func verityDataDevices(hc *types.HostConfiguration) map[string]bool {
	under := map[string]bool{}
	for _, v := range hc.Storage.Verity {
		under[v.ID] = true
		under[v.DataDeviceID] = true
	}
	return under
}

func checkVerityImpliesReadOnly(hc *types.HostConfiguration, g *deviceGraph, result *multierror.Error) *multierror.Error {
	verityBacked := verityDataDevices(hc)
	for _, f := range hc.Storage.Filesystems {
		if f.MountPoint != "/" && f.MountPoint != "/usr" {
			continue
		}
		if !verityBacked[f.DeviceID] {
			continue
		}
		if !f.ReadOnly() {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"filesystem %q is mounted at %s on a verity-protected device and must be read-only", f.ID, f.MountPoint))
		}
	}
	return result
}

func checkAdoptionMatchers(hc *types.HostConfiguration, result *multierror.Error) *multierror.Error {
	for _, d := range hc.Storage.Disks {
		for _, p := range d.Partitions {
			if p.Adoption == nil {
				continue
			}
			hasLabel := p.Adoption.MatchLabel != ""
			hasUUID := p.Adoption.MatchUUID != ""
			switch {
			case hasLabel == hasUUID:
				result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
					"adopted partition %q must set exactly one of matchLabel or matchUuid", p.ID))
			}
		}
	}
	for _, a := range hc.Storage.AdoptedPartition {
		hasLabel := a.MatchLabel != ""
		hasUUID := a.MatchUUID != ""
		if hasLabel == hasUUID {
			result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
				"adopted partition %q must set exactly one of matchLabel or matchUuid", a.PartitionID))
		}
	}
	return result
}

// checkSELinuxExtensionConflict rejects SELinux enforcing mode combined with
// sysext/confext image placement — the Open Question decision recorded in
// DESIGN.md: systemd-sysext's overlay mounts land outside the labelled base
// tree and cannot be relabelled before the policy is loaded.
func checkSELinuxExtensionConflict(hc *types.HostConfiguration, result *multierror.Error) *multierror.Error {
	if hc.OS.SELinux != types.SELinuxEnforcing {
		return result
	}
	if len(hc.OS.Sysexts) > 0 || len(hc.OS.Confexts) > 0 {
		result = multierror.Append(result, types.Errorf(types.KindConfig, "hostconfig",
			"selinuxMode: enforcing is incompatible with sysexts/confexts"))
	}
	return result
}
