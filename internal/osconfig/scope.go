// Package osconfig applies the OS Configuration section of a Host
// Configuration inside a scoped, bind-mounted view of the target root
// (spec.md §4.7).
package osconfig

import (
	"path/filepath"

	"github.com/microsoft/trident/internal/types"
)

// bindTargets are bind-mounted from the servicing OS into the target view
// in this order, and unmounted in the reverse order on release.
var bindTargets = []string{"/proc", "/sys", "/dev", "/run"}

// ScopedRoot is the RAII-style handle for the mounted-and-bound "newroot"
// view: acquired once, released on every exit path (success, error, or
// panic via a deferred Release at the call site).
type ScopedRoot struct {
	mounter  types.Mounter
	syscall  types.SyscallInterface
	rootDev  string
	mountAt  string
	bound    []string
	entered  bool
}

// Acquire mounts rootDevice at mountAt, bind-mounts /proc, /sys, /dev, /run
// under it, and returns a handle. It does not chroot; call Enter for that,
// separately, so callers can populate files into the view first.
func Acquire(mounter types.Mounter, sc types.SyscallInterface, rootDevice, mountAt string) (*ScopedRoot, error) {
	if err := mounter.Mount(rootDevice, mountAt, "", nil); err != nil {
		return nil, types.NewError(types.KindFilesystem, "osconfig", err)
	}
	s := &ScopedRoot{mounter: mounter, syscall: sc, rootDev: rootDevice, mountAt: mountAt}
	for _, t := range bindTargets {
		target := filepath.Join(mountAt, t)
		if err := mounter.Mount(t, target, "", []string{"bind"}); err != nil {
			s.Release()
			return nil, types.NewError(types.KindFilesystem, "osconfig", err)
		}
		s.bound = append(s.bound, target)
	}
	return s, nil
}

// Enter chroots the current process into the mounted view. Trident runs
// single-threaded during this window so the process-wide chroot is safe.
func (s *ScopedRoot) Enter() error {
	if err := s.syscall.Chroot(s.mountAt); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	if err := s.syscall.Chdir("/"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	s.entered = true
	return nil
}

// Release unwinds the bind mounts and root mount in reverse order, tolerant
// of partial acquisition so it is always safe to defer immediately after
// Acquire returns successfully.
func (s *ScopedRoot) Release() error {
	var lastErr error
	for i := len(s.bound) - 1; i >= 0; i-- {
		if err := s.mounter.Unmount(s.bound[i]); err != nil {
			lastErr = err
		}
	}
	s.bound = nil
	if err := s.mounter.Unmount(s.mountAt); err != nil {
		lastErr = err
	}
	if lastErr != nil {
		return types.NewError(types.KindFilesystem, "osconfig", lastErr)
	}
	return nil
}

func (s *ScopedRoot) MountPoint() string { return s.mountAt }
