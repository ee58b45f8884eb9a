// Package fsutil provides the production and in-memory implementations of
// the types.FS/Runner/Mounter/SyscallInterface seams: a real filesystem
// (twpayne/go-vfs-backed) for production, and a memory-backed fake for
// tests.
package fsutil

import (
	"os"

	"github.com/twpayne/go-vfs/v4"

	"github.com/microsoft/trident/internal/types"
)

// VFS adapts a github.com/twpayne/go-vfs/v4 vfs.FS to types.FS. Production
// code constructs it over vfs.OSFS; tests use the separate in-memory FakeFS
// instead.
type VFS struct {
	fs vfs.FS
}

var _ types.FS = (*VFS)(nil)

// NewOS returns the real, OS-backed filesystem.
func NewOS() *VFS { return &VFS{fs: vfs.OSFS} }

// NewOver wraps an arbitrary vfs.FS.
func NewOver(fs vfs.FS) *VFS { return &VFS{fs: fs} }

func (v *VFS) Open(name string) (types.File, error) {
	return v.fs.Open(name)
}

func (v *VFS) Create(name string) (types.File, error) {
	return v.fs.Create(name)
}

func (v *VFS) OpenFile(name string, flag int, perm os.FileMode) (types.File, error) {
	return v.fs.OpenFile(name, flag, perm)
}

func (v *VFS) ReadFile(name string) ([]byte, error) { return v.fs.ReadFile(name) }

func (v *VFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return v.fs.WriteFile(name, data, perm)
}

func (v *VFS) Stat(name string) (os.FileInfo, error)  { return v.fs.Stat(name) }
func (v *VFS) Lstat(name string) (os.FileInfo, error) { return v.fs.Lstat(name) }
func (v *VFS) RemoveAll(name string) error            { return v.fs.RemoveAll(name) }
func (v *VFS) Remove(name string) error               { return v.fs.Remove(name) }
func (v *VFS) Rename(oldpath, newpath string) error   { return v.fs.Rename(oldpath, newpath) }
func (v *VFS) MkdirAll(path string, perm os.FileMode) error {
	return vfs.MkdirAll(v.fs, path, perm)
}
func (v *VFS) ReadDir(name string) ([]os.DirEntry, error) { return v.fs.ReadDir(name) }
