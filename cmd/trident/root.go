package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/version"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "trident",
		Short:         "Image-based OS install/update/rollback servicing agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	bindConfigFlags(root, v)

	root.AddCommand(
		newInstallCmd(v),
		newUpdateCmd(v),
		newCommitCmd(v),
		newRollbackCmd(v),
		newValidateCmd(v),
		newGetCmd(v),
		newRebuildRaidCmd(v),
		newDaemonCmd(v),
		newStreamDiskCmd(v),
	)
	return root
}
