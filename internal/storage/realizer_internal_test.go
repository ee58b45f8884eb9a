package storage

import (
	"testing"

	"github.com/microsoft/trident/internal/types"
)

func TestMergeTopLevelAdoptionFillsUnsetMatchers(t *testing.T) {
	sc := types.StorageConfiguration{
		Disks: []types.DiskConfig{
			{
				ID: "disk-a",
				Partitions: []types.PartitionConfig{
					{ID: "esp"},
					{ID: "data", Adoption: &types.AdoptedPartition{PartitionID: "data", MatchLabel: "inline"}},
				},
			},
		},
		AdoptedPartition: []types.AdoptedPartition{
			{PartitionID: "esp", MatchLabel: "ESP"},
		},
	}

	disks := mergeTopLevelAdoption(sc)
	if len(disks) != 1 {
		t.Fatalf("expected 1 disk, got %d", len(disks))
	}

	espPart := disks[0].Partitions[0]
	if espPart.Adoption == nil || espPart.Adoption.MatchLabel != "ESP" {
		t.Fatalf("expected top-level matcher to populate esp partition, got %+v", espPart.Adoption)
	}

	dataPart := disks[0].Partitions[1]
	if dataPart.Adoption == nil || dataPart.Adoption.MatchLabel != "inline" {
		t.Fatalf("expected inline matcher to survive unmodified, got %+v", dataPart.Adoption)
	}

	// The original configuration's partition slice must be untouched.
	if sc.Disks[0].Partitions[0].Adoption != nil {
		t.Fatalf("mergeTopLevelAdoption mutated the input StorageConfiguration")
	}
}
