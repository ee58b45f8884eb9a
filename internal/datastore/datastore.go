// Package datastore persists Host Status to the state partition: each save
// writes the whole document to a temporary file, fsyncs it and renames it
// into place, guarded by an advisory file lock, so a reader never observes
// a half-written document and at most one writer mutates it at a time
// (spec.md §3, §9). There is no separate append log; only the latest
// snapshot is kept.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/microsoft/trident/internal/types"
)

// Store is the seam internal/engine uses to load and persist Host Status.
// InMemoryStore satisfies it for the pre-state-partition phase of a clean
// install, before any durable storage exists to write to.
type Store interface {
	Load() (*types.HostStatus, error)
	Save(status *types.HostStatus) error
	Close() error
}

// FileStore is the production Store: a single YAML document at path,
// guarded by a sibling .lock file via gofrs/flock, written by
// write-to-temp -> fsync -> rename(2) so a crash mid-write never corrupts
// the previous good document.
type FileStore struct {
	fs       types.FS
	path     string
	lockPath string
	lock     *flock.Flock
}

var _ Store = (*FileStore)(nil)

// Open acquires an exclusive advisory lock on path's datastore, refusing to
// proceed if another trident process (daemon or CLI) already holds it —
// the single-writer half of the store's single-writer/multi-reader
// contract.
func Open(fs types.FS, path string) (*FileStore, error) {
	lockPath := path + ".lock"
	lk := flock.New(lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, types.NewError(types.KindInternal, "datastore", err)
	}
	if !locked {
		return nil, types.Errorf(types.KindPrecondition, "datastore", "datastore %s is locked by another trident process", path)
	}
	return &FileStore{fs: fs, path: path, lockPath: lockPath, lock: lk}, nil
}

// OpenShared acquires a shared (read-only) lock, for concurrent readers
// like `trident get status` that must never block on or be blocked by each
// other.
func OpenShared(fs types.FS, path string) (*FileStore, error) {
	lockPath := path + ".lock"
	lk := flock.New(lockPath)
	locked, err := lk.TryRLock()
	if err != nil {
		return nil, types.NewError(types.KindInternal, "datastore", err)
	}
	if !locked {
		return nil, types.Errorf(types.KindPrecondition, "datastore", "datastore %s is exclusively locked", path)
	}
	return &FileStore{fs: fs, path: path, lockPath: lockPath, lock: lk}, nil
}

func (s *FileStore) Load() (*types.HostStatus, error) {
	data, err := s.fs.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &types.HostStatus{ServicingState: types.StateNotProvisioned, ServicingType: types.ServicingNone}, nil
	}
	if err != nil {
		return nil, types.NewError(types.KindInternal, "datastore", err)
	}
	var status types.HostStatus
	if err := yaml.Unmarshal(data, &status); err != nil {
		return nil, types.NewError(types.KindInternal, "datastore", err)
	}
	return &status, nil
}

// Save marshals status and commits it via a write-temp/fsync/rename
// sequence so a crash never leaves a partially-written datastore file.
func (s *FileStore) Save(status *types.HostStatus) error {
	data, err := yaml.Marshal(status)
	if err != nil {
		return types.NewError(types.KindInternal, "datastore", err)
	}
	tmpPath := fmt.Sprintf("%s.tmp-%s", s.path, uuid.NewString())
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return types.NewError(types.KindInternal, "datastore", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmpPath)
		return types.NewError(types.KindInternal, "datastore", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmpPath)
		return types.NewError(types.KindInternal, "datastore", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return types.NewError(types.KindInternal, "datastore", err)
	}
	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return types.NewError(types.KindInternal, "datastore", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return s.lock.Unlock()
}

// Dir returns the directory containing the datastore file, for callers that
// need to locate sibling artifacts (health-check failure logs, COSI cache).
func (s *FileStore) Dir() string {
	return filepath.Dir(s.path)
}

// InMemoryStore backs the pre-state-partition phase of a clean install, when
// Host Status must be tracked across the engine's own state-machine steps
// before any durable partition exists to persist it to.
type InMemoryStore struct {
	status *types.HostStatus
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{status: &types.HostStatus{ServicingState: types.StateNotProvisioned, ServicingType: types.ServicingNone}}
}

func (s *InMemoryStore) Load() (*types.HostStatus, error) {
	cp := *s.status
	return &cp, nil
}

func (s *InMemoryStore) Save(status *types.HostStatus) error {
	cp := *status
	s.status = &cp
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
