package types

import (
	"context"
	"io"
	"os"
	"time"
)

// Logger is the structured logging seam injected into every component, so
// call sites read identically whether backed by logrus (production) or a
// buffering fake (tests).
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	SetLevel(level string) error
}

// FS abstracts the filesystem so unit tests can run against an in-memory
// tree (fsutil.FakeFS) instead of the real one.
type FS interface {
	Open(name string) (File, error)
	Create(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	Lstat(name string) (os.FileInfo, error)
	RemoveAll(name string) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// File is the subset of *os.File our code needs, satisfied both by the real
// file and by go-vfs/test doubles.
type File interface {
	io.ReadWriteCloser
	io.Seeker
	Sync() error
	Name() string
}

// Runner executes external processes — sgdisk, mdadm, cryptsetup,
// veritysetup, mkfs.*, setfiles, netplan, systemctl. The engine never
// imports os/exec directly outside this seam.
type Runner interface {
	RunContext(ctx context.Context, command string, args ...string) ([]byte, error)
	Run(command string, args ...string) ([]byte, error)

	// RunWithStdin runs command with stdin's bytes piped to the child's
	// standard input, for tools like `cryptsetup --key-file -` that refuse
	// to take a secret as an argument.
	RunWithStdin(ctx context.Context, stdin []byte, command string, args ...string) ([]byte, error)
}

// Mounter abstracts mount/unmount/bind-mount, backed by k8s.io/mount-utils
// in production.
type Mounter interface {
	Mount(source, target, fstype string, options []string) error
	Unmount(target string) error
	IsLikelyNotMountPoint(path string) (bool, error)
}

// SyscallInterface abstracts the handful of raw syscalls the OS configurator
// needs for its scoped chroot acquisition (chroot, chdir), so tests never
// actually chroot.
type SyscallInterface interface {
	Chroot(path string) error
	Chdir(path string) error
}

// Clock abstracts time so retry/backoff and health-check polling are
// deterministic under test.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}
