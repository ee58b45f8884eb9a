package fsutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/microsoft/trident/internal/types"
)

// FakeRunner records every invocation and replays a scripted result per
// command, standing in for sgdisk/mdadm/cryptsetup/veritysetup/etc in tests
// without ever invoking a real binary.
type FakeRunner struct {
	mu       sync.Mutex
	Calls    []FakeCall
	Results  map[string]FakeResult // keyed by command
	Default  FakeResult
}

type FakeCall struct {
	Command string
	Args    []string
	Stdin   []byte
}

type FakeResult struct {
	Output []byte
	Err    error
}

var _ types.Runner = (*FakeRunner)(nil)

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Results: map[string]FakeResult{}}
}

func (f *FakeRunner) Run(command string, args ...string) ([]byte, error) {
	return f.RunContext(context.Background(), command, args...)
}

func (f *FakeRunner) RunContext(ctx context.Context, command string, args ...string) ([]byte, error) {
	return f.RunWithStdin(ctx, nil, command, args...)
}

func (f *FakeRunner) RunWithStdin(_ context.Context, stdin []byte, command string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{Command: command, Args: args, Stdin: stdin})
	if r, ok := f.Results[command]; ok {
		return r.Output, r.Err
	}
	return f.Default.Output, f.Default.Err
}

// WasCalledWith reports whether any recorded call matches command exactly
// and args as a prefix.
func (f *FakeRunner) WasCalledWith(command string, argsPrefix ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c.Command != command || len(c.Args) < len(argsPrefix) {
			continue
		}
		match := true
		for i, a := range argsPrefix {
			if c.Args[i] != a {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// FakeMounter tracks mount/unmount calls against an in-memory map instead of
// touching the real mount table.
type FakeMounter struct {
	mu     sync.Mutex
	Mounts map[string]string // target -> source
}

var _ types.Mounter = (*FakeMounter)(nil)

func NewFakeMounter() *FakeMounter {
	return &FakeMounter{Mounts: map[string]string{}}
}

func (f *FakeMounter) Mount(source, target, _ string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Mounts[target] = source
	return nil
}

func (f *FakeMounter) Unmount(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Mounts[target]; !ok {
		return fmt.Errorf("not mounted: %s", target)
	}
	delete(f.Mounts, target)
	return nil
}

func (f *FakeMounter) IsLikelyNotMountPoint(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Mounts[path]
	return !ok, nil
}

// FakeSyscall no-ops chroot/chdir so osconfig's scoped acquisition can be
// unit tested without root privileges.
type FakeSyscall struct {
	mu      sync.Mutex
	Chroots []string
	Chdirs  []string
}

var _ types.SyscallInterface = (*FakeSyscall)(nil)

func (f *FakeSyscall) Chroot(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Chroots = append(f.Chroots, path)
	return nil
}

func (f *FakeSyscall) Chdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Chdirs = append(f.Chdirs, path)
	return nil
}

// FakeClock returns a fixed instant and no-ops Sleep, so backoff/retry and
// timestamped-log tests are deterministic.
type FakeClock struct {
	Instant time.Time
}

var _ types.Clock = (*FakeClock)(nil)

func (f *FakeClock) Now() time.Time       { return f.Instant }
func (f *FakeClock) Sleep(time.Duration) {}
