package boot

import (
	"fmt"
	"path"
	"sort"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/types"
)

// ESPLayout names the well-known directories inside a mounted ESP.
type ESPLayout struct {
	MountPoint string
}

// SideDir returns the per-A/B-side boot-file directory (EFI/AZLA or
// EFI/AZLB). The ESP itself is shared across A/B; only these subdirectories
// are namespaced.
func (l ESPLayout) SideDir(active types.AbActiveVolume) string {
	if active == types.VolumeA {
		return path.Join(l.MountPoint, constants.ESPAzlADir)
	}
	return path.Join(l.MountPoint, constants.ESPAzlBDir)
}

func (l ESPLayout) FallbackDir() string {
	return path.Join(l.MountPoint, constants.ESPBootDir)
}

func (l ESPLayout) LinuxDir() string {
	return path.Join(l.MountPoint, constants.ESPLinuxDir)
}

// UKIName builds the firmware-visible UKI filename
// vmlinuz-<NNN>-azl<a|b><idx>.efi. servicingIndex is zero-padded to exactly
// three digits so lexicographic sort tracks servicing order (spec.md §4.6,
// invariant 6). osIndex is 0 for non-multiboot installs per the spec.md §9
// Open Question decision.
func UKIName(servicingIndex int, active types.AbActiveVolume, osIndex int) string {
	side := "a"
	if active == types.VolumeB {
		side = "b"
	}
	return fmt.Sprintf(constants.UKIFilenameFormat, servicingIndex, side, osIndex)
}

// SortUKINames returns names sorted lexicographically, which — given the
// fixed-width servicing-index prefix — is also servicing order. The most
// recent servicing's UKI sorts last.
func SortUKINames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
