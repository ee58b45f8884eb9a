package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/raidrebuild"
	"github.com/microsoft/trident/internal/storage"
	"github.com/microsoft/trident/internal/types"
)

func newRebuildRaidCmd(v *viper.Viper) *cobra.Command {
	var arrayID, replacement string

	cmd := &cobra.Command{
		Use:   "rebuild-raid",
		Short: "Re-add a replacement disk to a RAID array missing a member (spec.md §4.5)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if arrayID == "" || replacement == "" {
				return types.Errorf(types.KindConfig, "rebuild-raid", "--array and --replacement are required")
			}
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.Load()
			if err != nil {
				return err
			}
			if status.InstalledSpec == nil {
				return types.Errorf(types.KindPrecondition, "rebuild-raid", "no installed configuration on record")
			}
			var array *types.RaidArrayConfig
			for i := range status.InstalledSpec.Storage.RaidArrays {
				if status.InstalledSpec.Storage.RaidArrays[i].ID == arrayID {
					array = &status.InstalledSpec.Storage.RaidArrays[i]
					break
				}
			}
			if array == nil {
				return types.Errorf(types.KindConfig, "rebuild-raid", "no RAID array %q in the installed configuration", arrayID)
			}

			runner := fsutil.ExecRunner{}
			uuidOf := func(name string) (string, error) {
				out, err := runner.Run("blkid", "-s", "UUID", "-o", "value", name)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(string(out)), nil
			}

			known := make([]raidrebuild.KnownMember, 0, len(array.MemberPartIDs))
			for _, partID := range array.MemberPartIDs {
				path := status.PartitionPaths[partID]
				uuid, _ := uuidOf(path)
				known = append(known, raidrebuild.KnownMember{ArrayID: array.ID, PartitionID: partID, DeviceUUID: uuid})
			}

			enumerator := storage.GhwEnumerator{}
			disks, err := enumerator.ListDisks()
			if err != nil {
				return err
			}
			currentUUIDs := raidrebuild.CurrentUUIDs(disks, uuidOf)

			controller := &raidrebuild.Controller{Enumerator: enumerator, Raid: &storage.RaidManager{Runner: runner}}
			missing := controller.Detect(known, currentUUIDs)
			if len(missing) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "array already has all known members present")
				return nil
			}

			target := missing[0]
			arrayDevicePath := fmt.Sprintf("%s/%s", constants.DefaultRAIDArrayBasePath, array.Name)
			missingDevicePath := status.PartitionPaths[target.PartitionID]
			if err := controller.Rebuild(*array, arrayDevicePath, missingDevicePath, replacement); err != nil {
				return err
			}

			status.PartitionPaths[target.PartitionID] = replacement
			return store.Save(status)
		},
	}
	cmd.Flags().StringVar(&arrayID, "array", "", "ID of the RAID array to repair")
	cmd.Flags().StringVar(&replacement, "replacement", "", "device path of the replacement disk's partition")
	return cmd
}
