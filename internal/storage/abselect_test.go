package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/types"
)

var _ = Describe("InactiveMember/ActiveMember", func() {
	pair := types.ABVolumePair{ID: "root-pair", VolumeAID: "root-a", VolumeBID: "root-b"}

	It("picks B as inactive when A is active", func() {
		Expect(storage.InactiveMember(pair, types.VolumeA)).To(Equal("root-b"))
		Expect(storage.ActiveMember(pair, types.VolumeA)).To(Equal("root-a"))
	})

	It("picks A as inactive when B is active", func() {
		Expect(storage.InactiveMember(pair, types.VolumeB)).To(Equal("root-a"))
		Expect(storage.ActiveMember(pair, types.VolumeB)).To(Equal("root-b"))
	})
})

var _ = Describe("ActiveDiskIDs", func() {
	sc := types.StorageConfiguration{
		Disks: []types.DiskConfig{
			{ID: "disk-a", Partitions: []types.PartitionConfig{{ID: "root-a"}, {ID: "esp-a"}}},
			{ID: "disk-b", Partitions: []types.PartitionConfig{{ID: "root-b"}}},
		},
		ABVolumePairs: []types.ABVolumePair{
			{ID: "root-pair", VolumeAID: "root-a", VolumeBID: "root-b"},
		},
	}

	It("names only the disk backing the currently-active member", func() {
		active := storage.ActiveDiskIDs(sc, types.VolumeA)
		Expect(active).To(HaveKey("disk-a"))
		Expect(active).NotTo(HaveKey("disk-b"))
	})

	It("flips to the other disk once the other side is active", func() {
		active := storage.ActiveDiskIDs(sc, types.VolumeB)
		Expect(active).To(HaveKey("disk-b"))
		Expect(active).NotTo(HaveKey("disk-a"))
	})

	It("resolves an encrypted A/B member back to its backing disk", func() {
		encrypted := types.StorageConfiguration{
			Disks: []types.DiskConfig{
				{ID: "disk-a", Partitions: []types.PartitionConfig{{ID: "part-a"}}},
				{ID: "disk-b", Partitions: []types.PartitionConfig{{ID: "part-b"}}},
			},
			Encryption: []types.EncryptionConfig{
				{ID: "enc-a", DeviceID: "part-a"},
				{ID: "enc-b", DeviceID: "part-b"},
			},
			ABVolumePairs: []types.ABVolumePair{
				{ID: "root-pair", VolumeAID: "enc-a", VolumeBID: "enc-b"},
			},
		}
		Expect(storage.ActiveDiskIDs(encrypted, types.VolumeA)).To(HaveKey("disk-a"))
	})
})
