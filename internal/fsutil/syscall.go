//go:build linux

package fsutil

import (
	"syscall"

	"github.com/microsoft/trident/internal/types"
)

// RealSyscall performs the actual chroot/chdir pair the scoped-acquisition
// handle in internal/osconfig uses to enter a mounted target view.
type RealSyscall struct{}

var _ types.SyscallInterface = RealSyscall{}

func (RealSyscall) Chroot(path string) error { return syscall.Chroot(path) }
func (RealSyscall) Chdir(path string) error  { return syscall.Chdir(path) }
