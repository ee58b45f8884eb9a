package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/cosi"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/types"
)

type fakeEnumerator struct {
	disks []cosi.DiskInfo
}

func (f fakeEnumerator) ListDisks() ([]cosi.DiskInfo, error) { return f.disks, nil }

var _ = Describe("SafetyGate", func() {
	var (
		fs   *fsutil.FakeFS
		gate *storage.SafetyGate
	)

	BeforeEach(func() {
		fs = fsutil.NewFakeFS()
		gate = &storage.SafetyGate{
			Enumerator: fakeEnumerator{disks: []cosi.DiskInfo{{Name: "/dev/sda"}}},
			FS:         fs,
		}
	})

	It("refuses to partition when not on live media and nothing overrides it", func() {
		Expect(fs.WriteFile("/proc/mounts", []byte("/dev/sda1 / ext4 rw 0 0\n"), 0)).To(Succeed())
		err := gate.Check(&types.HostConfiguration{}, "/dev/sda")
		Expect(err).To(HaveOccurred())
	})

	It("allows partitioning when booted from an overlay/squashfs live root", func() {
		Expect(fs.WriteFile("/proc/mounts", []byte("overlay / overlay rw 0 0\n"), 0)).To(Succeed())
		Expect(gate.Check(&types.HostConfiguration{}, "/dev/sda")).To(Succeed())
	})

	It("allows partitioning when allowPartitionOnDisk overrides the gate", func() {
		Expect(fs.WriteFile("/proc/mounts", []byte("/dev/sda1 / ext4 rw 0 0\n"), 0)).To(Succeed())
		hc := &types.HostConfiguration{Internal: types.InternalParams{AllowPartitionOnDisk: true}}
		Expect(gate.Check(hc, "/dev/sda")).To(Succeed())
	})

	It("allows partitioning when multiboot is configured together with adopted partitions", func() {
		Expect(fs.WriteFile("/proc/mounts", []byte("/dev/sda1 / ext4 rw 0 0\n"), 0)).To(Succeed())
		hc := &types.HostConfiguration{
			Internal: types.InternalParams{MultibootOSIndex: 1},
			Storage: types.StorageConfiguration{
				AdoptedPartition: []types.AdoptedPartition{{PartitionID: "esp", MatchLabel: "ESP"}},
			},
		}
		Expect(gate.Check(hc, "/dev/sda")).To(Succeed())
	})

	It("still refuses multiboot without any adopted partitions", func() {
		Expect(fs.WriteFile("/proc/mounts", []byte("/dev/sda1 / ext4 rw 0 0\n"), 0)).To(Succeed())
		hc := &types.HostConfiguration{Internal: types.InternalParams{MultibootOSIndex: 1}}
		Expect(gate.Check(hc, "/dev/sda")).To(HaveOccurred())
	})
})
