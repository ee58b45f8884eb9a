package osconfig

import (
	"path/filepath"

	"github.com/pkg/xattr"

	"github.com/microsoft/trident/internal/types"
)

// samplePaths is checked for the security.selinux xattr after a relabel, a
// cheap confirmation that doesn't require walking the whole target tree.
var samplePaths = []string{"/etc", "/usr/bin", "/var"}

// SELinuxManager sets the enforcement mode and drives a full filesystem
// relabel.
type SELinuxManager struct {
	Runner types.Runner
}

// SetMode persists the enforcement mode into the target's
// /etc/selinux/config with sed, after a best-effort semanage call that
// clears permissive domains; it is a no-op (not an error) when mode is
// empty. A disabled mode is written like any other.
func (s *SELinuxManager) SetMode(targetRoot string, mode types.SELinuxMode) error {
	if mode == "" {
		return nil
	}
	// semanage can exit non-zero when there's nothing to clear; the config
	// write below is the operation that actually matters.
	_, _ = s.Runner.Run("chroot", targetRoot, "semanage", "permissive", "-d", "-a")

	var value string
	switch mode {
	case types.SELinuxDisabled:
		value = "disabled"
	case types.SELinuxPermissive:
		value = "permissive"
	case types.SELinuxEnforcing:
		value = "enforcing"
	default:
		return types.Errorf(types.KindConfig, "osconfig", "unknown SELinux mode %q", mode)
	}
	if _, err := s.Runner.Run("chroot", targetRoot, "sed", "-i",
		"s/^SELINUX=.*/SELINUX="+value+"/", "/etc/selinux/config"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	return nil
}

// Relabel runs setfiles against the target's own file-context policy, then
// verifies the relabel actually stuck on a handful of sample paths before
// declaring the step done.
func (s *SELinuxManager) Relabel(targetRoot string) error {
	if _, err := s.Runner.Run("chroot", targetRoot, "setfiles", "-F",
		"/etc/selinux/targeted/contexts/files/file_contexts", "/"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	for _, p := range samplePaths {
		full := filepath.Join(targetRoot, p)
		if _, err := xattr.Get(full, "security.selinux"); err != nil {
			return types.Errorf(types.KindFilesystem, "osconfig", "relabel verification failed on %s: %v", full, err)
		}
	}
	return nil
}
