package osconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mudler/entities"

	"github.com/microsoft/trident/internal/types"
)

// ApplyUsers declaratively converges /etc/passwd, /etc/shadow, and
// /etc/group inside targetRoot using mudler/entities, then writes any
// configured SSH authorized_keys directly since entities' scope stops at
// the passwd/group/shadow triad.
func ApplyUsers(fs types.FS, targetRoot string, users []types.UserConfig) error {
	for _, u := range users {
		doc := userEntityYAML(u)
		ent, err := entities.ParseEntity(doc)
		if err != nil {
			return types.NewError(types.KindFilesystem, "osconfig", err)
		}
		if err := entities.ApplyEntity(targetRoot, ent); err != nil {
			return types.NewError(types.KindFilesystem, "osconfig", err)
		}
		if len(u.SSHPublicKeys) > 0 {
			if err := writeAuthorizedKeys(fs, targetRoot, u); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAuthorizedKeys(fs types.FS, targetRoot string, u types.UserConfig) error {
	home := filepath.Join(targetRoot, "home", u.Name)
	if u.Name == "root" {
		home = filepath.Join(targetRoot, "root")
	}
	sshDir := filepath.Join(home, ".ssh")
	if err := fs.MkdirAll(sshDir, 0o700); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	content := strings.Join(u.SSHPublicKeys, "\n") + "\n"
	if err := fs.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(content), 0o600); err != nil {
		return types.NewError(types.KindFilesystem, "osconfig", err)
	}
	return nil
}

// userEntityYAML renders the entities library's declarative user-entity
// document for one Host Configuration user.
func userEntityYAML(u types.UserConfig) []byte {
	groups := ""
	for _, g := range u.SecondaryGroups {
		groups += fmt.Sprintf("\n    - %s", g)
	}
	doc := fmt.Sprintf(`kind: user
metadata:
  name: %s
  path: /etc/passwd
spec:
  name: %s
  password_hash: %q
  secondary_groups:%s
`, u.Name, u.Name, u.PasswordHash, groups)
	return []byte(doc)
}
