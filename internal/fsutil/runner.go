package fsutil

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/microsoft/trident/internal/types"
)

// ExecRunner shells out to real binaries (sgdisk, mdadm, cryptsetup,
// veritysetup, mkfs.*, setfiles, netplan, systemctl, ...) — the seam the
// spec calls "drives them" for every tool the engine doesn't reimplement.
type ExecRunner struct{}

var _ types.Runner = ExecRunner{}

func (ExecRunner) Run(command string, args ...string) ([]byte, error) {
	return ExecRunner{}.RunContext(context.Background(), command, args...)
}

func (ExecRunner) RunContext(ctx context.Context, command string, args ...string) ([]byte, error) {
	return ExecRunner{}.RunWithStdin(ctx, nil, command, args...)
}

func (ExecRunner) RunWithStdin(ctx context.Context, stdin []byte, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.Bytes(), &RunError{Command: command, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// RunError captures enough context to attribute a BlockDeviceError or
// FilesystemError to the right external tool invocation.
type RunError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *RunError) Error() string {
	return e.Command + ": " + e.Err.Error() + ": " + e.Stderr
}

func (e *RunError) Unwrap() error { return e.Err }
