package fsutil

import (
	mountutils "k8s.io/mount-utils"

	"github.com/microsoft/trident/internal/types"
)

// KubeMounter adapts k8s.io/mount-utils to types.Mounter for
// mount/unmount/bind-mount operations.
type KubeMounter struct {
	inner mountutils.Interface
}

var _ types.Mounter = (*KubeMounter)(nil)

func NewKubeMounter() *KubeMounter {
	return &KubeMounter{inner: mountutils.New("")}
}

func (m *KubeMounter) Mount(source, target, fstype string, options []string) error {
	return m.inner.Mount(source, target, fstype, options)
}

func (m *KubeMounter) Unmount(target string) error {
	return mountutils.CleanupMountPoint(target, m.inner, true)
}

func (m *KubeMounter) IsLikelyNotMountPoint(path string) (bool, error) {
	return m.inner.IsLikelyNotMountPoint(path)
}
