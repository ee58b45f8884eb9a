package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/hostconfig"
	"github.com/microsoft/trident/internal/types"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <hc.yaml>",
		Short: "Parse and validate a Host Configuration without servicing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := fsutil.NewOS()
			hc, err := hostconfig.ParseFile(fs, args[0])
			if err != nil {
				return err
			}
			if err := hostconfig.Validate(hc); err != nil {
				return types.NewError(types.KindConfig, "hostconfig", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}
