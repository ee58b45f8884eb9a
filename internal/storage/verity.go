package storage

import (
	"bufio"
	"strings"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/types"
)

// VerityManager formats and activates dm-verity targets.
type VerityManager struct {
	Runner types.Runner
}

// Format runs `veritysetup format` and parses the root hash out of its
// output, since that hash must be recorded in Host Status (or compared
// against a pre-supplied one) before the device is ever opened.
func (v *VerityManager) Format(dataDevice, hashDevice string) (rootHash string, err error) {
	out, rerr := v.Runner.Run("veritysetup", "format",
		"--hash="+constants.VerityHashAlgorithm,
		dataDevice, hashDevice)
	if rerr != nil {
		return "", types.NewError(types.KindBlockDevice, "storage", rerr)
	}
	return parseRootHash(out), nil
}

func parseRootHash(output []byte) string {
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "Root hash:") {
			fields := strings.Fields(line)
			return fields[len(fields)-1]
		}
	}
	return ""
}

// Open activates a verity mapping with a known-good root hash, refusing to
// open a target if the configured/verified hash is empty.
func (v *VerityManager) Open(name, dataDevice, hashDevice, rootHash string) error {
	if rootHash == "" {
		return types.Errorf(types.KindIntegrity, "storage", "verity target %s has no verified root hash", name)
	}
	if _, err := v.Runner.Run("veritysetup", "open", dataDevice, name, hashDevice, rootHash); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}

func (v *VerityManager) Close(name string) error {
	if _, err := v.Runner.Run("veritysetup", "close", name); err != nil {
		return types.NewError(types.KindBlockDevice, "storage", err)
	}
	return nil
}
