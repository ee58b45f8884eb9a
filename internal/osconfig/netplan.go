package osconfig

import (
	"path/filepath"

	"github.com/microsoft/trident/internal/types"
)

const netplanDir = "/etc/netplan"
const netplanFile = "50-trident.yaml"

// ApplyNetplan writes doc into the target's netplan directory and applies
// it. A blank document is a no-op, since netplan is optional in the OS
// Configuration.
func ApplyNetplan(fs types.FS, runner types.Runner, targetRoot, doc string) error {
	if doc == "" {
		return nil
	}
	dir := filepath.Join(targetRoot, netplanDir)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	if err := fs.WriteFile(filepath.Join(dir, netplanFile), []byte(doc), 0o600); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	if _, err := runner.Run("chroot", targetRoot, "netplan", "apply"); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	return nil
}
