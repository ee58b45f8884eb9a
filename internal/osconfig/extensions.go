package osconfig

import (
	"github.com/microsoft/trident/internal/types"
)

// RefreshSysexts runs `systemd-sysext refresh` after the streaming pipeline
// or a servicing-OS copy has already placed each configured sysext image at
// its non-A/B path; this package only triggers the overlay activation.
func RefreshSysexts(runner types.Runner, targetRoot string) error {
	if _, err := runner.Run("chroot", targetRoot, "systemd-sysext", "refresh"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	return nil
}

// RefreshConfexts runs the confext equivalent.
func RefreshConfexts(runner types.Runner, targetRoot string) error {
	if _, err := runner.Run("chroot", targetRoot, "systemd-confext", "refresh"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	return nil
}
