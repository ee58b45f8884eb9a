package fsutil

import (
	"bytes"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/microsoft/trident/internal/types"
)

// FakeFS is a minimal in-memory types.FS, standing in for the real
// filesystem in tests the same way FakeRunner stands in for os/exec.
type FakeFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ types.FS = (*FakeFS)(nil)

func NewFakeFS() *FakeFS {
	return &FakeFS{files: map[string][]byte{}, dirs: map[string]bool{"/": true}}
}

func (f *FakeFS) WriteFile(name string, data []byte, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.files[name] = cp
	return nil
}

func (f *FakeFS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (f *FakeFS) MkdirAll(path string, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path] = true
	return nil
}

func (f *FakeFS) Stat(name string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.files[name]; ok {
		return fakeFileInfo{name: name, size: int64(len(data))}, nil
	}
	if f.dirs[name] {
		return fakeFileInfo{name: name, isDir: true}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
}

func (f *FakeFS) Lstat(name string) (os.FileInfo, error) { return f.Stat(name) }

func (f *FakeFS) RemoveAll(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.files {
		if p == name || (len(p) > len(name) && p[:len(name)+1] == name+"/") {
			delete(f.files, p)
		}
	}
	delete(f.dirs, name)
	return nil
}

func (f *FakeFS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(f.files, name)
	return nil
}

func (f *FakeFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[oldpath]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldpath, Err: os.ErrNotExist}
	}
	f.files[newpath] = data
	delete(f.files, oldpath)
	return nil
}

func (f *FakeFS) ReadDir(dir string) ([]os.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for p := range f.files {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			names = append(names, p[len(prefix):])
		}
	}
	sort.Strings(names)
	entries := make([]os.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, fakeDirEntry{name: n})
	}
	return entries, nil
}

func (f *FakeFS) Open(name string) (types.File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

func (f *FakeFS) Create(name string) (types.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (f *FakeFS) OpenFile(name string, flag int, _ os.FileMode) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		if flag&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
		data = nil
	}
	if flag&os.O_TRUNC != 0 {
		data = nil
	}
	return &fakeFile{fs: f, name: name, buf: bytes.NewBuffer(data)}, nil
}

type fakeFile struct {
	fs   *FakeFS
	name string
	buf  *bytes.Buffer
	pos  int
}

var _ types.File = (*fakeFile)(nil)

func (ff *fakeFile) Read(p []byte) (int, error) {
	return bytes.NewReader(ff.buf.Bytes()[ff.pos:]).Read(p)
}

func (ff *fakeFile) Write(p []byte) (int, error) {
	n, err := ff.buf.Write(p)
	ff.pos += n
	return n, err
}

func (ff *fakeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		ff.pos = int(offset)
	case 1:
		ff.pos += int(offset)
	case 2:
		ff.pos = ff.buf.Len() + int(offset)
	}
	return int64(ff.pos), nil
}

func (ff *fakeFile) Sync() error { return nil }

func (ff *fakeFile) Name() string { return ff.name }

func (ff *fakeFile) Close() error {
	ff.fs.mu.Lock()
	defer ff.fs.mu.Unlock()
	ff.fs.files[ff.name] = append([]byte(nil), ff.buf.Bytes()...)
	return nil
}

type fakeFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (i fakeFileInfo) Name() string       { return i.name }
func (i fakeFileInfo) Size() int64        { return i.size }
func (i fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (i fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (i fakeFileInfo) IsDir() bool        { return i.isDir }
func (i fakeFileInfo) Sys() interface{}   { return nil }

type fakeDirEntry struct{ name string }

func (e fakeDirEntry) Name() string               { return e.name }
func (e fakeDirEntry) IsDir() bool                { return false }
func (e fakeDirEntry) Type() os.FileMode          { return 0 }
func (e fakeDirEntry) Info() (os.FileInfo, error) { return fakeFileInfo{name: e.name}, nil }
